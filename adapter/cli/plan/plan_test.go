package plan

import (
	"context"
	"os"
	"testing"

	"github.com/felixgeelhaar/screenpass/adapter/cli"
	"github.com/felixgeelhaar/screenpass/adapter/cli/clitest"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/commands"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	cli.AddCommand(Cmd)
	os.Exit(m.Run())
}

func TestListPlans(t *testing.T) {
	env := clitest.New(t)

	out, err := clitest.Run(t, "plan", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No plans available.")

	weekly := env.Seed.SeedPlan(t, 7, true)
	retired := env.Seed.SeedPlan(t, 90, false)

	out, err = clitest.Run(t, "plans", "ls")
	require.NoError(t, err)
	assert.Contains(t, out, weekly.String())
	assert.Contains(t, out, "/ 7 days")
	assert.NotContains(t, out, retired.String())
}

func TestMyPlan(t *testing.T) {
	env := clitest.New(t)
	user, userArgs := env.User(t, domain.RoleUser)
	planID := env.Seed.SeedPlan(t, 30, true)

	_, err := clitest.Run(t, append([]string{"plan", "mine"}, userArgs...)...)
	require.ErrorIs(t, err, domain.ErrNoActiveSubscriptions)

	sub, err := env.Container.CreateSubscriptionHandler.Handle(context.Background(), commands.CreateSubscriptionCommand{
		Principal: &user,
		PlanID:    planID,
	})
	require.NoError(t, err)
	_, err = env.Container.ActivateSubscriptionHandler.Handle(context.Background(), commands.ActivateSubscriptionCommand{
		SubscriptionID: sub.ID(),
		ActorID:        user.UserID,
	})
	require.NoError(t, err)

	out, err := clitest.Run(t, append([]string{"plan", "mine"}, userArgs...)...)
	require.NoError(t, err)
	assert.Contains(t, out, planID.String())
	assert.Contains(t, out, "/ 30 days")
}
