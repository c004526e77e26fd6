package autofix

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/netdiag/netdiag/internal/errs"
	"github.com/netdiag/netdiag/internal/models"
	"github.com/netdiag/netdiag/internal/providers"
)

type fakeAutofixProvider struct {
	dnsServers map[string][]string
	failOn     models.FixTypeKind
	calls      []models.FixTypeKind
}

func newFakeAutofixProvider() *fakeAutofixProvider {
	return &fakeAutofixProvider{dnsServers: map[string][]string{"eth0": {"8.8.8.8"}}}
}

func (f *fakeAutofixProvider) record(kind models.FixTypeKind) error {
	f.calls = append(f.calls, kind)
	if f.failOn == kind {
		return errs.New(errs.Autofix, "fake", "induced failure")
	}
	return nil
}

func (f *fakeAutofixProvider) FlushDNSCache(ctx context.Context) error { return f.record(models.FixFlushDnsCache) }
func (f *fakeAutofixProvider) ResetAdapter(ctx context.Context, iface string) error {
	return f.record(models.FixResetAdapter)
}
func (f *fakeAutofixProvider) GetDNSServers(ctx context.Context, iface string) ([]string, error) {
	return f.dnsServers[iface], nil
}
func (f *fakeAutofixProvider) SetDNSServers(ctx context.Context, iface string, servers []string) error {
	if err := f.record(models.FixSetDnsServers); err != nil {
		return err
	}
	f.dnsServers[iface] = servers
	return nil
}
func (f *fakeAutofixProvider) RenewDHCP(ctx context.Context, iface string) error {
	return f.record(models.FixRenewDhcp)
}
func (f *fakeAutofixProvider) ResetTCPIPStack(ctx context.Context) error {
	return f.record(models.FixResetTcpIp)
}
func (f *fakeAutofixProvider) ClearARPCache(ctx context.Context) error {
	return f.record(models.FixClearArpCache)
}
func (f *fakeAutofixProvider) RestartNetworkService(ctx context.Context) error {
	return f.record(models.FixRestartNetworkSvc)
}
func (f *fakeAutofixProvider) ResetFirewall(ctx context.Context) error {
	return f.record(models.FixResetFirewall)
}
func (f *fakeAutofixProvider) RunCustomCommand(ctx context.Context, cmd string, args []string) error {
	return f.record(models.FixCustomCommand)
}

type fakePrivilegeProvider struct{ level providers.PrivilegeLevel }

func (f *fakePrivilegeProvider) CurrentPrivilegeLevel(ctx context.Context) (providers.PrivilegeLevel, error) {
	return f.level, nil
}
func (f *fakePrivilegeProvider) HasCapability(ctx context.Context, capability string) (bool, error) {
	return false, nil
}
func (f *fakePrivilegeProvider) AvailableCapabilities(ctx context.Context) ([]string, error) {
	return nil, nil
}

type fakeNetworkProvider struct{ interfaces map[string]models.Interface }

func (f *fakeNetworkProvider) ListInterfaces(ctx context.Context) ([]models.Interface, error) {
	return nil, nil
}
func (f *fakeNetworkProvider) GetInterface(ctx context.Context, name string) (*models.Interface, error) {
	if iface, ok := f.interfaces[name]; ok {
		return &iface, nil
	}
	return nil, errs.New(errs.NotFound, "fake", "no such interface")
}
func (f *fakeNetworkProvider) GetDefaultInterface(ctx context.Context) (*models.Interface, error) {
	return nil, nil
}
func (f *fakeNetworkProvider) GetDefaultRoute(ctx context.Context) (*models.Route, error) {
	return nil, errs.New(errs.NotFound, "fake", "no default route")
}
func (f *fakeNetworkProvider) GetRoutes(ctx context.Context) ([]models.Route, error) { return nil, nil }
func (f *fakeNetworkProvider) GetDefaultGateway(ctx context.Context) (string, error)   { return "10.0.0.1", nil }
func (f *fakeNetworkProvider) GetDNSServers(ctx context.Context) ([]string, error)     { return nil, nil }
func (f *fakeNetworkProvider) GetDHCPInfo(ctx context.Context, iface string) (*models.DHCPInfo, error) {
	return nil, errs.New(errs.NotFound, "fake", "no dhcp info")
}
func (f *fakeNetworkProvider) DetectISP(ctx context.Context) (string, error)           { return "", nil }
func (f *fakeNetworkProvider) SupportsPromiscuous(ctx context.Context, iface string) (bool, error) {
	return false, nil
}
func (f *fakeNetworkProvider) Refresh(ctx context.Context) error { return nil }

func TestPlanFiltersByCategoryAndSortsBySeverity(t *testing.T) {
	plan := Plan(Catalog("eth0"), []models.FixCategory{models.CategoryDns, models.CategoryTcpIp}, false)

	if len(plan.Actions) == 0 {
		t.Fatal("expected at least one action")
	}
	for i := 1; i < len(plan.Actions); i++ {
		if plan.Actions[i].Severity < plan.Actions[i-1].Severity {
			t.Fatalf("actions not sorted by severity: %v before %v", plan.Actions[i-1].Severity, plan.Actions[i].Severity)
		}
	}
	for _, a := range plan.Actions {
		if a.Category != models.CategoryDns && a.Category != models.CategoryTcpIp {
			t.Errorf("unexpected category in plan: %v", a.Category)
		}
	}
}

func TestCheckPrerequisitesRejectsMissingAdmin(t *testing.T) {
	priv := &fakePrivilegeProvider{level: providers.PrivilegeUser}
	net := &fakeNetworkProvider{interfaces: map[string]models.Interface{"eth0": {Name: "eth0"}}}
	e := New(newFakeAutofixProvider(), nil, false)

	action := Catalog("eth0")[3] // reset-adapter requires admin
	err := e.CheckPrerequisites(context.Background(), priv, net, action)
	if errs.KindOf(err) != errs.PrerequisiteMissing {
		t.Fatalf("expected PrerequisiteMissing, got %v", err)
	}
}

func TestExecuteDryRunNeverInvokesProvider(t *testing.T) {
	fake := newFakeAutofixProvider()
	priv := &fakePrivilegeProvider{level: providers.PrivilegeRoot}
	net := &fakeNetworkProvider{interfaces: map[string]models.Interface{"eth0": {Name: "eth0"}}}
	e := New(fake, nil, true)

	plan := Plan(Catalog("eth0"), []models.FixCategory{models.CategoryDns}, true)
	results, err := e.Execute(context.Background(), priv, net, plan)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.calls) != 0 {
		t.Errorf("dry run should not invoke provider, got calls: %v", fake.calls)
	}
	for _, r := range results {
		if !r.Success {
			t.Errorf("dry run result should report success, got %+v", r)
		}
	}
}

func TestExecuteSetDNSFailurePropagatesAndLeavesServers(t *testing.T) {
	dir := t.TempDir()
	rb, err := NewRollbackManager(dir, 10, 0)
	if err != nil {
		t.Fatalf("NewRollbackManager: %v", err)
	}

	fake := newFakeAutofixProvider()
	priv := &fakePrivilegeProvider{level: providers.PrivilegeRoot}
	net := &fakeNetworkProvider{interfaces: map[string]models.Interface{"eth0": {Name: "eth0"}}}
	e := New(fake, rb, false)

	action := SetDNSAction("eth0", []string{"1.1.1.1"})
	original := append([]string(nil), fake.dnsServers["eth0"]...)

	fake.failOn = models.FixSetDnsServers
	plan := models.FixPlan{Actions: []models.FixAction{action}}
	results, err := e.Execute(context.Background(), priv, net, plan)
	if err == nil {
		t.Fatal("expected induced failure to propagate")
	}
	if len(results) != 1 || results[0].Success {
		t.Fatalf("expected a single failed result, got %+v", results)
	}

	// The provider's SetDNSServers call failed before mutating state, so the
	// servers should remain at their original value (no actual mutation to
	// roll back, since the fake fails before applying the change).
	if got := fake.dnsServers["eth0"]; len(got) != len(original) {
		t.Errorf("dns servers unexpectedly changed: %v", got)
	}
}

func TestExecuteSetDNSSucceedsAndCapturesRollbackPoint(t *testing.T) {
	dir := t.TempDir()
	rb, err := NewRollbackManager(dir, 10, 0)
	if err != nil {
		t.Fatalf("NewRollbackManager: %v", err)
	}

	fake := newFakeAutofixProvider()
	priv := &fakePrivilegeProvider{level: providers.PrivilegeRoot}
	net := &fakeNetworkProvider{interfaces: map[string]models.Interface{"eth0": {Name: "eth0"}}}
	e := New(fake, rb, false)

	plan := models.FixPlan{Actions: []models.FixAction{SetDNSAction("eth0", []string{"1.1.1.1"})}}
	results, err := e.Execute(context.Background(), priv, net, plan)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !results[0].Success {
		t.Fatalf("expected success, got %+v", results[0])
	}
	if got := fake.dnsServers["eth0"]; len(got) != 1 || got[0] != "1.1.1.1" {
		t.Errorf("dns servers not updated: %v", got)
	}

	points := rb.List()
	if len(points) != 1 {
		t.Fatalf("expected one rollback point, got %d", len(points))
	}
	if points[0].State.Kind != models.RollbackDnsServers || points[0].State.Servers[0] != "8.8.8.8" {
		t.Errorf("rollback point did not capture prior dns servers: %+v", points[0].State)
	}
}

// TestFlushDnsCacheIsIdempotent: running the plan [FlushDnsCache] twice
// produces two success results and no state beyond the first invocation.
func TestFlushDnsCacheIsIdempotent(t *testing.T) {
	fake := newFakeAutofixProvider()
	priv := &fakePrivilegeProvider{level: providers.PrivilegeRoot}
	net := &fakeNetworkProvider{interfaces: map[string]models.Interface{"eth0": {Name: "eth0"}}}
	e := New(fake, nil, false)

	plan := models.FixPlan{Actions: []models.FixAction{Catalog("eth0")[0]}} // flush-dns-cache

	for i := 0; i < 2; i++ {
		results, err := e.Execute(context.Background(), priv, net, plan)
		if err != nil {
			t.Fatalf("run %d: unexpected error: %v", i, err)
		}
		if len(results) != 1 || !results[0].Success {
			t.Fatalf("run %d: expected one success result, got %+v", i, results)
		}
	}
	if len(fake.calls) != 2 || fake.calls[0] != models.FixFlushDnsCache || fake.calls[1] != models.FixFlushDnsCache {
		t.Errorf("expected two FlushDnsCache invocations, got %v", fake.calls)
	}
}

// TestManualRollbackRestoresAndConsumesPoint: after SetDnsServers
// succeeds, rolling the point back asks the provider to restore the prior
// servers, marks the point invalid, and refuses a second rollback of the
// same id.
func TestManualRollbackRestoresAndConsumesPoint(t *testing.T) {
	dir := t.TempDir()
	rb, err := NewRollbackManager(dir, 10, 0)
	if err != nil {
		t.Fatalf("NewRollbackManager: %v", err)
	}

	fake := newFakeAutofixProvider()
	fake.dnsServers["en0"] = []string{"10.0.0.1"}
	priv := &fakePrivilegeProvider{level: providers.PrivilegeRoot}
	net := &fakeNetworkProvider{interfaces: map[string]models.Interface{"en0": {Name: "en0"}}}
	e := New(fake, rb, false)

	plan := models.FixPlan{Actions: []models.FixAction{SetDNSAction("en0", []string{"1.1.1.1"})}}
	if _, err := e.Execute(context.Background(), priv, net, plan); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := fake.dnsServers["en0"]; got[0] != "1.1.1.1" {
		t.Fatalf("provider did not see the new servers: %v", got)
	}

	points := rb.List()
	if len(points) != 1 {
		t.Fatalf("expected one rollback point, got %d", len(points))
	}
	id := points[0].ID
	if points[0].State.Kind != models.RollbackDnsServers || points[0].State.Iface != "en0" || points[0].State.Servers[0] != "10.0.0.1" {
		t.Fatalf("rollback point state mismatch: %+v", points[0].State)
	}

	if err := e.Restore(context.Background(), id); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got := fake.dnsServers["en0"]; got[0] != "10.0.0.1" {
		t.Errorf("provider was not asked to restore the original servers: %v", got)
	}
	point, _ := rb.Get(id)
	if point.Valid {
		t.Error("restored point should be marked invalid")
	}

	if err := e.Restore(context.Background(), id); errs.KindOf(err) != errs.Autofix {
		t.Errorf("second rollback of a consumed point should fail with Autofix kind, got %v", err)
	}
}

func TestRestoreConfigFileStateRewritesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "resolv.conf")
	original := []byte("nameserver 10.0.0.1\n")
	if err := os.WriteFile(path, []byte("nameserver 1.1.1.1\n"), 0644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	e := New(newFakeAutofixProvider(), nil, false)
	state := models.RollbackState{Kind: models.RollbackConfigFile, Path: path, Contents: original}
	if err := e.restore(context.Background(), state); err != nil {
		t.Fatalf("restore: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read restored file: %v", err)
	}
	if string(data) != string(original) {
		t.Errorf("file contents = %q, want pre-image restored", data)
	}
}

func TestRestoreMultipleStateRecurses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "netdiag.conf")
	fake := newFakeAutofixProvider()
	fake.dnsServers["eth0"] = []string{"1.1.1.1"}
	e := New(fake, nil, false)

	state := models.RollbackState{Kind: models.RollbackMultiple, States: []models.RollbackState{
		{Kind: models.RollbackDnsServers, Iface: "eth0", Servers: []string{"10.0.0.1"}},
		{Kind: models.RollbackConfigFile, Path: path, Contents: []byte("restored\n")},
	}}
	if err := e.restore(context.Background(), state); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := fake.dnsServers["eth0"]; got[0] != "10.0.0.1" {
		t.Errorf("nested DnsServers state not restored: %v", got)
	}
	if data, _ := os.ReadFile(path); string(data) != "restored\n" {
		t.Errorf("nested ConfigFile state not restored: %q", data)
	}
}
