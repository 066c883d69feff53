package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/PlanWing/internal/task"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL + "/", Token: "secret"})
	require.NoError(t, err)
	return c
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestClient_SendsHeaders(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/3/sprints/current", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, err := uuid.Parse(r.Header.Get(RequestIDHeader))
		assert.NoError(t, err)
		_, _ = io.WriteString(w, `{"id":9,"name":"S1","status":"OPEN"}`)
	})

	s, err := c.CurrentSprint(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(9), s.ID)
	assert.True(t, s.IsOpen())
}

func TestClient_ListWeeksNormalizes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/1/weekly-planner/weeks", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		_, _ = io.WriteString(w, `{"weeks":[{"id":1,"weekStart":"2025-01-06","weekEnd":"2025-01-31"}],
			"metadata":{"weekStartDay":1,"sprintId":4,"sprintStatus":"OPEN","roles":["MENTOR"],"total":1}}`)
	})

	page, err := c.ListWeeks(context.Background(), 1, 10, 0)
	require.NoError(t, err)
	require.Len(t, page.Weeks, 1)
	assert.Equal(t, "2025-01-12", page.Weeks[0].WeekEnd)
	assert.Equal(t, []string{"MENTOR"}, page.Metadata.Roles)
}

func TestClient_ListAllWeeksPaginates(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		var page WeekPage
		page.Metadata.Total = 3
		switch r.URL.Query().Get("offset") {
		case "":
			page.Weeks = []task.Week{{ID: 1, WeekStart: "2025-01-06"}, {ID: 2, WeekStart: "2025-01-13"}}
		case "2":
			page.Weeks = []task.Week{{ID: 3, WeekStart: "2025-01-20"}}
		}
		_ = json.NewEncoder(w).Encode(page)
	})

	all, err := c.ListAllWeeks(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Len(t, all.Weeks, 3)
	assert.Equal(t, 2, calls)
}

func TestClient_ListAllWeeksStopsWhenOffsetIgnored(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		page := WeekPage{Weeks: []task.Week{{ID: 1, WeekStart: "2025-01-06"}, {ID: 2, WeekStart: "2025-01-13"}}}
		_ = json.NewEncoder(w).Encode(page)
	})

	all, err := c.ListAllWeeks(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Len(t, all.Weeks, 2, "the repeated page adds nothing")
	assert.Equal(t, 2, calls)
}

func TestClient_ListAllWeeksPageCap(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		page := WeekPage{Weeks: []task.Week{{ID: int64(calls), WeekStart: "2025-01-06"}}}
		_ = json.NewEncoder(w).Encode(page)
	})

	_, err := c.ListAllWeeks(context.Background(), 1, 1)
	require.Error(t, err)
	assert.True(t, task.IsCode(err, task.CodeInternal))
	assert.Equal(t, maxWeekPages, calls)
}

func TestClient_CreateTaskPaths(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		var d task.Draft
		require.NoError(t, json.NewDecoder(r.Body).Decode(&d))
		resp := task.Task{ID: 100, Note: d.Note, DayOfWeek: d.DayOfWeek}
		if r.URL.Path == "/projects/1/weekly-planner/weeks/5/tasks" {
			resp.WeekID = task.Ptr(int64(5))
		} else {
			assert.Nil(t, d.DayOfWeek, "backlog create drops the day")
			resp.IsBacklog = true
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	ctx := context.Background()

	inWeek, err := c.CreateTask(ctx, 1, task.WeekContainer(5), task.Draft{Note: "a", DayOfWeek: task.Ptr(3)})
	require.NoError(t, err)
	assert.Equal(t, task.WeekContainer(5), inWeek.Container())
	assert.Equal(t, task.StatusOpened, inWeek.Status)

	inBacklog, err := c.CreateTask(ctx, 1, task.Backlog(), task.Draft{Note: "b", DayOfWeek: task.Ptr(3)})
	require.NoError(t, err)
	assert.True(t, inBacklog.IsBacklog)
	assert.Nil(t, inBacklog.DayOfWeek)

	assert.Equal(t, []string{"/projects/1/weekly-planner/weeks/5/tasks", "/projects/1/weekly-planner/weeks/backlog/tasks"}, paths)
}

func TestClient_MoveTaskSendsNullForBacklog(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/projects/1/weekly-planner/tasks/8/week", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"weekId":null}`, string(raw))
		_, _ = io.WriteString(w, `{"id":8,"weekId":null,"isBacklog":true,"dayOfWeek":4}`)
	})

	got, err := c.MoveTask(context.Background(), 1, 8, task.Backlog())
	require.NoError(t, err)
	assert.True(t, got.IsBacklog)
	assert.Nil(t, got.DayOfWeek)
}

func TestClient_CarryOverBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/1/weekly-planner/weeks/7/carry-over", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"targetWeekStart":"2025-01-13","taskIds":[1,2]}`, string(raw))
		_, _ = io.WriteString(w, `[{"id":11,"weekId":8,"carriedOverFromWeekId":7}]`)
	})

	got, err := c.CarryOver(context.Background(), 1, 7, "2025-01-13", []int64{1, 2})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(7), *got[0].CarriedOverFromWeekID)
}

func TestStatusErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   task.Code
	}{
		{status: 400, want: task.CodeValidation},
		{status: 422, want: task.CodeValidation},
		{status: 403, want: task.CodeForbidden},
		{status: 404, want: task.CodeNotFound},
		{status: 409, want: task.CodeConflict},
		{status: 423, want: task.CodeSprintClosed},
		{status: 408, want: task.CodeTimeout},
		{status: 504, want: task.CodeTimeout},
		{status: 500, want: task.CodeNetwork},
		{status: 500, body: `{"code":"SPRINT_CLOSED","message":"sprint closed"}`, want: task.CodeSprintClosed},
		{status: 400, body: `{"code":"WHATEVER","message":"x"}`, want: task.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status)+tt.body, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.UpdateTask(context.Background(), 1, 2, task.Changes{Note: task.Ptr("x")})
			require.Error(t, err)
			assert.Equal(t, tt.want, task.CodeOf(err))
		})
	}
}

func TestClient_TransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()
	c, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.CloseSprint(ctx, 1)
	assert.True(t, task.IsCode(err, task.CodeTimeout), "got %v", err)

	down, err := New(Config{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	_, err = down.CloseSprint(context.Background(), 1)
	assert.True(t, task.IsCode(err, task.CodeNetwork), "got %v", err)
}
