package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/PlanWing/internal/api"
	"github.com/josephgoksu/PlanWing/internal/api/apitest"
)

// newTestBoard serves p and returns a board over it.
func newTestBoard(t *testing.T, p *apitest.Planner, mod func(*Context)) *Board {
	t.Helper()
	client, err := api.New(api.Config{BaseURL: p.Start(t), Timeout: 5 * time.Second})
	require.NoError(t, err)

	appCtx := &Context{
		ProjectID:    p.ProjectID(),
		Server:       client,
		WeekStartDay: 1,
		PageSize:     2,
	}
	if mod != nil {
		mod(appCtx)
	}
	return NewBoard(appCtx)
}
