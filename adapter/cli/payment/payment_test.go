package payment

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

func run(t *testing.T, principalArgs []string, args ...string) (string, error) {
	t.Helper()
	return clitest.Run(t, append(append([]string{"payment"}, args...), principalArgs...)...)
}

func subscribe(t *testing.T, env *clitest.Env, user domain.Principal) *domain.Subscription {
	t.Helper()
	sub, err := env.Container.CreateSubscriptionHandler.Handle(context.Background(), commands.CreateSubscriptionCommand{
		Principal: &user,
		PlanID:    env.Seed.SeedPlan(t, 30, true),
	})
	require.NoError(t, err)
	return sub
}

func TestRecordPendingThenComplete(t *testing.T) {
	ctx := context.Background()
	env := clitest.New(t)
	user, userArgs := env.User(t, domain.RoleUser)
	_, adminArgs := env.User(t, domain.RoleAdmin)
	sub := subscribe(t, env, user)

	out, err := run(t, userArgs, "record",
		"--subscription", sub.ID().String(),
		"--amount", "4.5",
		"--method", "paypal",
		"--details", `{"payer":"viewer@example.com"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "Payment recorded:")
	assert.Contains(t, out, "PENDING")
	assert.Contains(t, out, "4.50 PAYPAL")

	payments, err := env.Container.PaymentRepo.FindByUser(ctx, user.UserID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	paymentID := payments[0].ID().String()

	out, err = run(t, userArgs, "show", paymentID)
	require.NoError(t, err)
	assert.Contains(t, out, `"payer": "viewer@example.com"`)

	_, err = run(t, userArgs, "set-status", paymentID, "COMPLETED")
	require.ErrorIs(t, err, domain.ErrAdminRequired)

	out, err = run(t, adminArgs, "set-status", paymentID, "completed")
	require.NoError(t, err)
	assert.Contains(t, out, "COMPLETED")

	stored, err := env.Container.SubscriptionRepo.FindByID(ctx, sub.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, stored.Status())

	out, err = run(t, userArgs, "list")
	require.NoError(t, err)
	assert.Contains(t, out, paymentID)

	out, err = run(t, adminArgs, "list", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, paymentID)

	_, err = run(t, userArgs, "list", "--all")
	require.ErrorIs(t, err, domain.ErrAdminRequired)
}

func TestRecordValidation(t *testing.T) {
	env := clitest.New(t)
	user, userArgs := env.User(t, domain.RoleUser)
	_, otherArgs := env.User(t, domain.RoleUser)
	sub := subscribe(t, env, user)

	_, err := run(t, userArgs, "record", "--subscription", sub.ID().String(), "--amount", "ten", "--method", "card")
	require.Error(t, err)

	_, err = run(t, userArgs, "record", "--subscription", sub.ID().String(), "--amount", "10", "--method", "cheque")
	require.Error(t, err)

	_, err = run(t, otherArgs, "record", "--subscription", sub.ID().String(), "--amount", "10", "--method", "card")
	require.ErrorIs(t, err, domain.ErrNotSubscriptionOwner)

	_, err = run(t, userArgs, "record", "--amount", "10", "--method", "card")
	require.Error(t, err)
}
