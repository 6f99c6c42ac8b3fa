package agent

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/opsmesh/a2a"
	"github.com/hupe1980/opsmesh/core"
	"github.com/hupe1980/opsmesh/model"
)

func stub(name string) core.Agent {
	return core.AgentFunc{AgentName: name, Fn: func(context.Context, string) (string, error) { return name, nil }}
}

func TestRegistry_AliasesAndRoutes(t *testing.T) {
	reg, err := BuildRegistry(DefaultSpecs(), func(s Spec) (core.Agent, error) { return stub(s.Name), nil })
	require.NoError(t, err)
	assert.Equal(t, 5, reg.Len())

	for alias, want := range map[string]string{
		"inventory":                InventorySpecialist,
		"Inventory_Specialist":     InventorySpecialist,
		"policy":                   PolicyExpert,
		"analytics":                AnalyticsSpecialist,
		"orders":                   OrderSpecialist,
		"order":                    OrderSpecialist,
		"notification":             NotificationSpecialist,
		" notification_specialist": NotificationSpecialist,
		"action_taker":             NotificationSpecialist,
	} {
		got, ok := reg.Canonical(alias)
		require.True(t, ok, alias)
		assert.Equal(t, want, got, alias)
		a, ok := reg.Lookup(alias)
		require.True(t, ok)
		assert.Equal(t, want, a.Name())
	}

	_, ok := reg.Lookup("weather_agent")
	assert.False(t, ok)

	assert.True(t, reg.IsAction("notification"))
	assert.False(t, reg.IsAction("inventory"))
	assert.False(t, reg.IsAction("unknown"))

	spec, ok := reg.Spec("orders")
	require.True(t, ok)
	assert.Equal(t, "orders", spec.Route)
	assert.Equal(t, InventorySpecialist, reg.Specs()[0].Name)
	assert.Equal(t, []string{AnalyticsSpecialist, InventorySpecialist, NotificationSpecialist, OrderSpecialist, PolicyExpert}, reg.Names())
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Spec{Name: "a", Route: "r"}, stub("a")))
	assert.Error(t, reg.Register(Spec{Name: "a"}, stub("a")))
	assert.Error(t, reg.Register(Spec{Name: "b", Route: "r"}, stub("b")))
	assert.Error(t, reg.Register(Spec{Name: "c", Aliases: []string{"A"}}, stub("c")))
	assert.Error(t, reg.Register(Spec{Name: "d"}, nil))

	require.NoError(t, reg.Register(Spec{}, stub("e")))
	_, ok := reg.Lookup("e")
	assert.True(t, ok)
}

func TestLocalFactory(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	reg, err := BuildRegistry(DefaultSpecs(), LocalFactory(llm, func(o *LocalOptions) { o.CompanyName = "Acme" }))
	require.NoError(t, err)

	inv, _ := reg.Lookup(InventorySpecialist)
	_, isModel := inv.(*ModelAgent)
	assert.True(t, isModel)
	notif, _ := reg.Lookup(NotificationSpecialist)
	_, isDraft := notif.(*DraftAgent)
	assert.True(t, isDraft)

	_, err = inv.Invoke(context.Background(), "stock?")
	require.NoError(t, err)
	assert.Contains(t, llm.Requests()[0].Instructions, "Inventory Specialist for Acme")

	_, err = LocalFactory(nil)(Spec{Name: InventorySpecialist})
	assert.Error(t, err)
}

func TestRemoteFactory(t *testing.T) {
	mux := httptest.NewServer(a2a.NewHandler(stub("remote-inventory")))
	defer mux.Close()

	a, err := RemoteFactory(mux.URL+"/", nil)(Spec{Name: InventorySpecialist, Route: "inventory"})
	require.NoError(t, err)
	assert.Equal(t, mux.URL+"/inventory/a2a/interact", a.(*RemoteAgent).Endpoint())

	out, err := a.Invoke(context.Background(), "stock?")
	require.NoError(t, err)
	assert.Equal(t, "remote-inventory", out)

	_, err = RemoteFactory("", nil)(Spec{Name: "x"})
	assert.Error(t, err)
}

func TestRemoteAgent_WrapsErrors(t *testing.T) {
	srv := httptest.NewServer(a2a.NewHandler(core.AgentFunc{AgentName: "p", Fn: func(context.Context, string) (string, error) {
		return "", assert.AnError
	}}))
	defer srv.Close()

	_, err := NewRemoteAgent(PolicyExpert, "", srv.URL, nil).Invoke(context.Background(), "x")
	var rpcErr *a2a.RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Contains(t, err.Error(), "call policy_expert")
}
