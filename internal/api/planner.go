package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/josephgoksu/PlanWing/internal/task"
)

// WeekPage is the response of the listing and generate endpoints.
type WeekPage struct {
	Weeks    []task.Week   `json:"weeks"`
	Metadata task.Metadata `json:"metadata"`
}

// WeekDetail is a single week with its tasks.
type WeekDetail struct {
	Week     task.Week     `json:"week"`
	Metadata task.Metadata `json:"metadata"`
}

type generateRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type moveRequest struct {
	WeekID *int64 `json:"weekId"`
}

type carryOverRequest struct {
	TargetWeekStart string  `json:"targetWeekStart"`
	TaskIDs         []int64 `json:"taskIds"`
}

func plannerPath(projectID int64, format string, args ...any) string {
	return fmt.Sprintf("/projects/%d/weekly-planner", projectID) + fmt.Sprintf(format, args...)
}

// CurrentSprint returns the open (or most recent) sprint of the project.
func (c *Client) CurrentSprint(ctx context.Context, projectID int64) (task.Sprint, error) {
	var s task.Sprint
	err := c.do(ctx, "current sprint", http.MethodGet, fmt.Sprintf("/projects/%d/sprints/current", projectID), nil, nil, &s)
	return s, err
}

// ListWeeks returns one page of weeks with planning metadata.
func (c *Client) ListWeeks(ctx context.Context, projectID int64, limit, offset int) (WeekPage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	var page WeekPage
	if err := c.do(ctx, "list weeks", http.MethodGet, plannerPath(projectID, "/weeks"), q, nil, &page); err != nil {
		return WeekPage{}, err
	}
	page.normalize()
	return page, nil
}

// maxWeekPages bounds ListAllWeeks.
const maxWeekPages = 200

// ListAllWeeks follows pagination until metadata.total weeks were read, a
// page comes back short or a page brings no new week.
func (c *Client) ListAllWeeks(ctx context.Context, projectID int64, pageSize int) (WeekPage, error) {
	if pageSize <= 0 {
		pageSize = 50
	}
	var all WeekPage
	seen := make(map[int64]bool)
	for page := 0; page < maxWeekPages; page++ {
		res, err := c.ListWeeks(ctx, projectID, pageSize, page*pageSize)
		if err != nil {
			return WeekPage{}, err
		}
		all.Metadata = res.Metadata
		added := 0
		for _, w := range res.Weeks {
			if !seen[w.ID] {
				seen[w.ID] = true
				all.Weeks = append(all.Weeks, w)
				added++
			}
		}
		// A server that ignores offset repeats the first page.
		if added == 0 || len(res.Weeks) < pageSize || (res.Metadata.Total > 0 && len(all.Weeks) >= res.Metadata.Total) {
			return all, nil
		}
	}
	return all, task.NewError(task.CodeInternal, "list weeks", fmt.Sprintf("more than %d pages of weeks", maxWeekPages), nil)
}

// GetWeek returns one week with its tasks.
func (c *Client) GetWeek(ctx context.Context, projectID, weekID int64) (WeekDetail, error) {
	var d WeekDetail
	if err := c.do(ctx, "get week", http.MethodGet, plannerPath(projectID, "/weeks/%d", weekID), nil, nil, &d); err != nil {
		return WeekDetail{}, err
	}
	d.Week.Normalize()
	return d, nil
}

// ListBacklog returns the backlog tasks of a sprint.
func (c *Client) ListBacklog(ctx context.Context, projectID, sprintID int64) ([]task.Task, error) {
	q := url.Values{}
	q.Set("sprintId", strconv.FormatInt(sprintID, 10))
	var tasks []task.Task
	if err := c.do(ctx, "list backlog", http.MethodGet, plannerPath(projectID, "/backlog"), q, nil, &tasks); err != nil {
		return nil, err
	}
	return normalizeTasks(tasks), nil
}

// GenerateWeeks asks the server to create the week(s) in [from, to].
func (c *Client) GenerateWeeks(ctx context.Context, projectID int64, from, to string) (WeekPage, error) {
	var page WeekPage
	body := generateRequest{From: from, To: to}
	if err := c.do(ctx, "generate weeks", http.MethodPost, plannerPath(projectID, "/weeks/generate"), nil, body, &page); err != nil {
		return WeekPage{}, err
	}
	page.normalize()
	return page, nil
}

// CreateTask creates a task in a week or, for the backlog container, in the
// backlog of the current sprint.
func (c *Client) CreateTask(ctx context.Context, projectID int64, container task.ContainerID, draft task.Draft) (task.Task, error) {
	segment := "backlog"
	if id, ok := container.WeekID(); ok {
		segment = strconv.FormatInt(id, 10)
	}
	if container.IsBacklog() {
		draft.DayOfWeek = nil
	}
	var t task.Task
	if err := c.do(ctx, "create task", http.MethodPost, plannerPath(projectID, "/weeks/%s/tasks", segment), nil, draft, &t); err != nil {
		return task.Task{}, err
	}
	t.Normalize()
	return t, nil
}

// UpdateTask applies a partial update.
func (c *Client) UpdateTask(ctx context.Context, projectID, taskID int64, changes task.Changes) (task.Task, error) {
	var t task.Task
	if err := c.do(ctx, "update task", http.MethodPatch, plannerPath(projectID, "/tasks/%d", taskID), nil, changes, &t); err != nil {
		return task.Task{}, err
	}
	t.Normalize()
	return t, nil
}

// MoveTask reassigns a task to a week or to the backlog.
func (c *Client) MoveTask(ctx context.Context, projectID, taskID int64, to task.ContainerID) (task.Task, error) {
	var t task.Task
	body := moveRequest{WeekID: to.WeekIDPtr()}
	if err := c.do(ctx, "move task", http.MethodPatch, plannerPath(projectID, "/tasks/%d/week", taskID), nil, body, &t); err != nil {
		return task.Task{}, err
	}
	t.Normalize()
	return t, nil
}

// CarryOver copies the given tasks of a closed week into the week starting
// at targetWeekStart and returns the new tasks.
func (c *Client) CarryOver(ctx context.Context, projectID, weekID int64, targetWeekStart string, taskIDs []int64) ([]task.Task, error) {
	var tasks []task.Task
	body := carryOverRequest{TargetWeekStart: targetWeekStart, TaskIDs: taskIDs}
	if err := c.do(ctx, "carry over", http.MethodPost, plannerPath(projectID, "/weeks/%d/carry-over", weekID), nil, body, &tasks); err != nil {
		return nil, err
	}
	return normalizeTasks(tasks), nil
}

// CloseWeek closes a week and returns it with refreshed metadata.
func (c *Client) CloseWeek(ctx context.Context, projectID, weekID int64) (WeekDetail, error) {
	var d WeekDetail
	if err := c.do(ctx, "close week", http.MethodPost, plannerPath(projectID, "/weeks/%d/close", weekID), nil, nil, &d); err != nil {
		return WeekDetail{}, err
	}
	d.Week.Normalize()
	return d, nil
}

// CloseSprint closes a sprint.
func (c *Client) CloseSprint(ctx context.Context, sprintID int64) (task.Sprint, error) {
	var s task.Sprint
	err := c.do(ctx, "close sprint", http.MethodPost, fmt.Sprintf("/sprints/%d/close", sprintID), nil, nil, &s)
	return s, err
}

func (p *WeekPage) normalize() {
	for i := range p.Weeks {
		p.Weeks[i].Normalize()
	}
}

func normalizeTasks(tasks []task.Task) []task.Task {
	if tasks == nil {
		return []task.Task{}
	}
	for i := range tasks {
		tasks[i].Normalize()
	}
	return tasks
}
