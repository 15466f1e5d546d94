package tenants_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/vocacrm/vocacrm-go/credentials/credentialsfake"
	"github.com/vocacrm/vocacrm-go/internal/backendtest"
	internalerrors "github.com/vocacrm/vocacrm-go/internal/errors"
	"github.com/vocacrm/vocacrm-go/session"
	"github.com/vocacrm/vocacrm-go/tenants"
	"github.com/vocacrm/vocacrm-go/tenants/tenantsfake"
)

func setupTestFixture(t *testing.T) (*tenantsfake.FakeSource, *tenants.Directory) {
	t.Helper()
	source := tenantsfake.NewFakeSource()
	source.Upsert(&tenants.Tenant{ID: "bp-a", Name: "A 미용실", Role: tenants.RoleOwner, MemberCount: 12})
	source.Upsert(&tenants.Tenant{ID: "bp-b", Name: "B 네일샵", Role: tenants.RoleStaff, MemberCount: 3})
	source.Upsert(&tenants.Tenant{ID: "bp-c", Name: "C 카페", Role: tenants.RoleManager})
	return source, tenants.NewDirectory(source, zerolog.Nop())
}

func TestDirectory_Load(t *testing.T) {
	t.Run("first tenant without a default", func(t *testing.T) {
		_, dir := setupTestFixture(t)
		list := dir.Load(context.Background(), "")
		require.Len(t, list, 3)
		require.Equal(t, "bp-a", dir.Current().ID)
	})

	t.Run("default tenant from the claims", func(t *testing.T) {
		_, dir := setupTestFixture(t)
		dir.Load(context.Background(), "bp-b")
		require.Equal(t, "bp-b", dir.Current().ID)
	})

	t.Run("unknown default falls back to the first", func(t *testing.T) {
		_, dir := setupTestFixture(t)
		dir.Load(context.Background(), "bp-gone")
		require.Equal(t, "bp-a", dir.Current().ID)
	})

	t.Run("previous selection survives a reload", func(t *testing.T) {
		_, dir := setupTestFixture(t)
		dir.Load(context.Background(), "")
		require.NoError(t, dir.Select("bp-c"))
		dir.Load(context.Background(), "bp-b")
		require.Equal(t, "bp-c", dir.Current().ID)
	})

	t.Run("selection dropped by the server is replaced", func(t *testing.T) {
		source, dir := setupTestFixture(t)
		dir.Load(context.Background(), "")
		require.NoError(t, dir.Select("bp-c"))
		source.Delete("bp-c")
		dir.Load(context.Background(), "bp-b")
		require.Equal(t, "bp-b", dir.Current().ID)
	})

	t.Run("failure leaves an empty list", func(t *testing.T) {
		source, dir := setupTestFixture(t)
		dir.Load(context.Background(), "")
		source.Fail(errors.New("boom"))

		require.Empty(t, dir.Load(context.Background(), "bp-a"))
		require.Empty(t, dir.List())
		require.Nil(t, dir.Current())
	})
}

func TestDirectory_Select(t *testing.T) {
	_, dir := setupTestFixture(t)
	dir.Load(context.Background(), "")

	require.NoError(t, dir.Select("bp-b"))
	require.Equal(t, "B 네일샵", dir.Current().Name)

	err := dir.Select("bp-unknown")
	require.ErrorIs(t, err, internalerrors.ErrTenantNotFound)
	require.Equal(t, "bp-b", dir.Current().ID)

	_, err = dir.Get("bp-unknown")
	require.ErrorIs(t, err, internalerrors.ErrTenantNotFound)

	got, err := dir.Get("bp-a")
	require.NoError(t, err)
	require.True(t, got.CanManage())
}

func TestDirectory_ReturnsCopies(t *testing.T) {
	_, dir := setupTestFixture(t)
	dir.Load(context.Background(), "")

	dir.List()[0].Name = "mutated"
	dir.Current().Name = "mutated"
	require.Equal(t, "A 미용실", dir.Current().Name)
}

func TestDirectory_Clear(t *testing.T) {
	_, dir := setupTestFixture(t)
	dir.Load(context.Background(), "")
	dir.Clear()
	require.Empty(t, dir.List())
	require.Nil(t, dir.Current())
}

type testConfig struct{ baseURL string }

func (c testConfig) GetAPIBaseURL() string         { return c.baseURL }
func (c testConfig) GetHTTPTimeout() time.Duration { return 5 * time.Second }

func TestAPISource(t *testing.T) {
	backend := backendtest.New(t)
	backend.SetPlaces(
		backendtest.Place{BusinessPlace: backendtest.PlaceInfo{ID: "bp-1", Name: "강남점", Address: "서울", Phone: "02-000-0000"}, UserRole: "OWNER", MemberCount: 40},
		backendtest.Place{BusinessPlace: backendtest.PlaceInfo{ID: "bp-2", Name: "홍대점"}, UserRole: "STAFF", MemberCount: 5},
	)
	store := credentialsfake.NewFakeStoreWith(backend.Issue("user-1"))
	manager := session.New(testConfig{baseURL: backend.URL}, store)
	require.NoError(t, manager.Init(context.Background()))

	list, err := tenants.NewAPISource(manager).MyTenants(context.Background())
	require.NoError(t, err)
	require.Equal(t, []*tenants.Tenant{
		{ID: "bp-1", Name: "강남점", Address: "서울", Phone: "02-000-0000", Role: tenants.RoleOwner, MemberCount: 40},
		{ID: "bp-2", Name: "홍대점", Role: tenants.RoleStaff, MemberCount: 5},
	}, list)
}

func TestAPISource_Unauthenticated(t *testing.T) {
	backend := backendtest.New(t)
	manager := session.New(testConfig{baseURL: backend.URL}, credentialsfake.NewFakeStore())

	_, err := tenants.NewAPISource(manager).MyTenants(context.Background())
	require.Equal(t, 401, session.StatusOf(err))
}
