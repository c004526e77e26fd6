/**
 * Autofix Engine.
 *
 * Builds a severity-ordered FixPlan for a diagnosed problem, checks each
 * action's prerequisites, then executes the plan action-by-action,
 * capturing a RollbackPoint before any reversible mutation and restoring
 * it automatically on failure.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package autofix

import (
	"context"
	"os"
	"sort"
	"time"

	"github.com/netdiag/netdiag/internal/errs"
	"github.com/netdiag/netdiag/internal/models"
	"github.com/netdiag/netdiag/internal/probe"
	"github.com/netdiag/netdiag/internal/providers"
)

// defaultVerifyHost is the well-known name used to verify DNS-adjacent
// actions (FlushDnsCache, SetDnsServers) actually left resolution working.
const defaultVerifyHost = "cloudflare.com"

// Engine plans and executes FixActions against an AutofixProvider, keeping
// rollback state in a RollbackManager.
type Engine struct {
	provider providers.AutofixProvider
	rollback *RollbackManager
	dryRun   bool

	verify   bool
	cooldown time.Duration
	resolver *probe.Resolver
}

// Option configures optional Engine behavior beyond the three required
// constructor arguments.
type Option func(*Engine)

// WithVerification turns on ExecuteWithRollback's post-mutation
// verification step: after a cooldown, the action-specific verifier runs
// and a failure triggers automatic restoration.
func WithVerification(cooldown time.Duration) Option {
	return func(e *Engine) {
		e.verify = true
		e.cooldown = cooldown
	}
}

// New constructs an Engine. dryRun, when true, makes Execute log every
// planned action and check prerequisites without invoking the provider.
func New(provider providers.AutofixProvider, rollback *RollbackManager, dryRun bool, opts ...Option) *Engine {
	e := &Engine{provider: provider, rollback: rollback, dryRun: dryRun, resolver: probe.NewResolver()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog is the fixed set of candidate FixActions the planner chooses
// from. Only actions needing no per-call parameters live here; see
// SetDNSAction for the parameterized one.
func Catalog(iface string) []models.FixAction {
	return []models.FixAction{
		{
			ID: "flush-dns-cache", Name: "Flush DNS cache",
			Description: "Clears the resolver's cached DNS records.",
			Severity:    models.FixLow, Category: models.CategoryDns, Reversible: false,
			EstimatedDuration: 2 * time.Second,
			Type:              models.FixType{Kind: models.FixFlushDnsCache},
		},
		{
			ID: "clear-arp-cache", Name: "Clear ARP cache",
			Description: "Flushes the kernel's neighbor/ARP table.",
			Severity:    models.FixLow, Category: models.CategoryTcpIp, Reversible: false,
			EstimatedDuration: 1 * time.Second,
			Type:              models.FixType{Kind: models.FixClearArpCache},
		},
		{
			ID: "renew-dhcp", Name: "Renew DHCP lease",
			Description: "Releases and re-requests the interface's DHCP lease.",
			Severity:    models.FixMedium, Category: models.CategoryAdapter, Reversible: false,
			EstimatedDuration: 10 * time.Second,
			Prerequisites:     []models.Prerequisite{{Kind: models.PrereqInterfaceExists, InterfaceName: iface}},
			Type:              models.FixType{Kind: models.FixRenewDhcp, Iface: iface},
		},
		{
			ID: "reset-adapter", Name: "Reset network adapter",
			Description: "Brings the interface down and back up.",
			Severity:    models.FixHigh, Category: models.CategoryAdapter, Reversible: false,
			EstimatedDuration: 5 * time.Second,
			Prerequisites: []models.Prerequisite{
				{Kind: models.PrereqAdminPrivileges},
				{Kind: models.PrereqInterfaceExists, InterfaceName: iface},
			},
			Type: models.FixType{Kind: models.FixResetAdapter, Iface: iface},
		},
		{
			ID: "reset-tcpip-stack", Name: "Reset TCP/IP stack",
			Description: "Resets kernel TCP/IP tunables to defaults.",
			Severity:    models.FixCritical, Category: models.CategoryTcpIp, Reversible: false,
			EstimatedDuration: 3 * time.Second,
			Prerequisites:     []models.Prerequisite{{Kind: models.PrereqAdminPrivileges}, {Kind: models.PrereqRebootMayBeRequired}},
			Type:              models.FixType{Kind: models.FixResetTcpIp},
		},
		{
			ID: "restart-network-service", Name: "Restart network service",
			Description: "Restarts the OS network management daemon.",
			Severity:    models.FixHigh, Category: models.CategoryService, Reversible: false,
			EstimatedDuration: 5 * time.Second,
			Prerequisites:     []models.Prerequisite{{Kind: models.PrereqAdminPrivileges}},
			Type:              models.FixType{Kind: models.FixRestartNetworkSvc},
		},
		{
			ID: "reset-firewall", Name: "Reset firewall rules",
			Description: "Flushes firewall rules to the platform default.",
			Severity:    models.FixCritical, Category: models.CategoryFirewall, Reversible: false,
			EstimatedDuration: 2 * time.Second,
			Prerequisites:     []models.Prerequisite{{Kind: models.PrereqAdminPrivileges}},
			Type:              models.FixType{Kind: models.FixResetFirewall},
		},
	}
}

// SetDNSAction builds the one parameterized action the static Catalog can't
// express: pointing an interface at specific resolvers. Reversible: true,
// since the prior servers are captured into a RollbackPoint before the
// mutation.
func SetDNSAction(iface string, servers []string) models.FixAction {
	return models.FixAction{
		ID: "set-dns-servers", Name: "Set DNS servers",
		Description: "Replaces the interface's configured DNS servers.",
		Severity:    models.FixMedium, Category: models.CategoryDns, Reversible: true,
		EstimatedDuration: 2 * time.Second,
		Prerequisites:     []models.Prerequisite{{Kind: models.PrereqInterfaceExists, InterfaceName: iface}},
		Type:              models.FixType{Kind: models.FixSetDnsServers, Iface: iface, Servers: servers},
	}
}

// Plan selects, from candidates, the actions whose category matches one of
// the diagnosed problem categories, sorted least-to-most severe so cheap
// low-risk fixes are tried before invasive ones.
func Plan(candidates []models.FixAction, categories []models.FixCategory, dryRun bool) models.FixPlan {
	want := make(map[models.FixCategory]bool, len(categories))
	for _, c := range categories {
		want[c] = true
	}

	actions := make([]models.FixAction, 0, len(candidates))
	for _, a := range candidates {
		if want[a.Category] {
			actions = append(actions, a)
		}
	}
	sort.SliceStable(actions, func(i, j int) bool { return actions[i].Severity < actions[j].Severity })

	return models.FixPlan{Actions: actions, DryRun: dryRun}
}

// CheckPrerequisites reports the first unmet prerequisite for an action, or
// nil if all are satisfied.
func (e *Engine) CheckPrerequisites(ctx context.Context, priv providers.PrivilegeProvider, net providers.NetworkProvider, a models.FixAction) error {
	for _, p := range a.Prerequisites {
		switch p.Kind {
		case models.PrereqAdminPrivileges:
			level, err := priv.CurrentPrivilegeLevel(ctx)
			if err != nil {
				return err
			}
			if level == providers.PrivilegeUser {
				return errs.New(errs.PrerequisiteMissing, "autofix.CheckPrerequisites", "admin privileges required for action: "+a.ID)
			}
		case models.PrereqInterfaceExists:
			if _, err := net.GetInterface(ctx, p.InterfaceName); err != nil {
				return errs.Wrap(errs.PrerequisiteMissing, "autofix.CheckPrerequisites", "interface does not exist: "+p.InterfaceName, err)
			}
		case models.PrereqNetworkConnection:
			if _, err := net.GetDefaultGateway(ctx); err != nil {
				return errs.Wrap(errs.PrerequisiteMissing, "autofix.CheckPrerequisites", "no default network connection", err)
			}
		case models.PrereqRebootMayBeRequired:
			// Advisory only; never blocks execution.
		}
	}
	return nil
}

// Execute runs a FixPlan action-by-action with the full rollback-and-verify
// protocol; it is an alias for ExecuteWithRollback kept for callers that
// don't need to name the safer variant explicitly.
func (e *Engine) Execute(ctx context.Context, priv providers.PrivilegeProvider, net providers.NetworkProvider, plan models.FixPlan) ([]models.FixResult, error) {
	return e.ExecuteWithRollback(ctx, priv, net, plan)
}

// ExecuteWithRollback runs every action in a FixPlan in order. One
// action's failure never aborts the plan; each action produces its own
// result record. Reversible actions get a RollbackPoint captured beforehand; if
// verification is enabled (WithVerification) and the action-specific
// verifier fails after the mutation, the snapshot is restored automatically
// and the result is marked failed. The returned error, when non-nil, is the
// error of the last action that failed (skipped actions contribute none), so callers that only want a coarse success/fail
// signal can still check it; the per-action results carry the full detail.
func (e *Engine) ExecuteWithRollback(ctx context.Context, priv providers.PrivilegeProvider, net providers.NetworkProvider, plan models.FixPlan) ([]models.FixResult, error) {
	results := make([]models.FixResult, 0, len(plan.Actions))
	var lastErr error

	for _, action := range plan.Actions {
		start := time.Now()

		if err := e.CheckPrerequisites(ctx, priv, net, action); err != nil {
			results = append(results, models.FixResult{ActionID: action.ID, Skipped: true, Reason: err.Error(), Duration: time.Since(start)})
			continue
		}

		if plan.DryRun || e.dryRun {
			results = append(results, models.FixResult{ActionID: action.ID, Success: true, Reason: "dry run", Duration: time.Since(start)})
			continue
		}

		result, err := e.executeOne(ctx, net, action)
		result.Duration = time.Since(start)
		results = append(results, result)
		if err != nil {
			lastErr = err
		}
	}

	return results, lastErr
}

// executeOne performs one action's mutation, capturing and restoring
// rollback state around reversible actions, then runs the post-mutation
// verifier when verification is enabled.
func (e *Engine) executeOne(ctx context.Context, net providers.NetworkProvider, action models.FixAction) (models.FixResult, error) {
	var point *models.RollbackPoint
	if action.Reversible && e.rollback != nil {
		state, err := e.captureState(ctx, action)
		if err == nil {
			actionID := action.ID
			point, _ = e.rollback.Create("pre-"+action.ID, state, &actionID)
		}
	}

	if err := e.invoke(ctx, action); err != nil {
		if point != nil {
			if rbErr := e.restore(ctx, point.State); rbErr == nil {
				return models.FixResult{ActionID: action.ID, Success: false, Reason: err.Error(), RolledBack: true}, err
			}
		}
		return models.FixResult{ActionID: action.ID, Success: false, Reason: err.Error()}, err
	}

	if e.verify {
		if e.cooldown > 0 {
			select {
			case <-time.After(e.cooldown):
			case <-ctx.Done():
				return models.FixResult{ActionID: action.ID, Success: false, Reason: ctx.Err().Error()}, ctx.Err()
			}
		}
		ok, err := e.verifyAction(ctx, net, action)
		if err == nil && !ok {
			if point != nil {
				if rbErr := e.restore(ctx, point.State); rbErr == nil {
					verr := errs.New(errs.Autofix, "autofix.Execute", "verification failed")
					return models.FixResult{ActionID: action.ID, Success: false, Verified: false, Reason: "verification failed", RolledBack: true}, verr
				}
			}
			verr := errs.New(errs.Autofix, "autofix.Execute", "verification failed")
			return models.FixResult{ActionID: action.ID, Success: false, Verified: false, Reason: "verification failed"}, verr
		}
	}

	return models.FixResult{ActionID: action.ID, Success: true, Verified: true}, nil
}

// verifyAction runs the action-specific post-mutation check. Types with no
// specific verifier default to verified.
func (e *Engine) verifyAction(ctx context.Context, net providers.NetworkProvider, action models.FixAction) (bool, error) {
	switch action.Type.Kind {
	case models.FixFlushDnsCache, models.FixSetDnsServers:
		if _, _, err := e.resolver.ResolveOne(ctx, defaultVerifyHost); err != nil {
			return false, nil
		}
		return true, nil
	case models.FixResetAdapter:
		iface, err := net.GetInterface(ctx, action.Type.Iface)
		if err != nil {
			return false, nil
		}
		return iface.Flags.Up, nil
	case models.FixRenewDhcp:
		iface, err := net.GetInterface(ctx, action.Type.Iface)
		if err != nil {
			return false, nil
		}
		return len(iface.IPv4) > 0, nil
	default:
		return true, nil
	}
}

// invoke dispatches one FixType to the concrete AutofixProvider call.
func (e *Engine) invoke(ctx context.Context, action models.FixAction) error {
	t := action.Type
	switch t.Kind {
	case models.FixFlushDnsCache:
		return e.provider.FlushDNSCache(ctx)
	case models.FixSetDnsServers:
		return e.provider.SetDNSServers(ctx, t.Iface, t.Servers)
	case models.FixResetAdapter:
		return e.provider.ResetAdapter(ctx, t.Iface)
	case models.FixResetTcpIp:
		return e.provider.ResetTCPIPStack(ctx)
	case models.FixRenewDhcp:
		return e.provider.RenewDHCP(ctx, t.Iface)
	case models.FixRestartNetworkSvc:
		return e.provider.RestartNetworkService(ctx)
	case models.FixClearArpCache:
		return e.provider.ClearARPCache(ctx)
	case models.FixResetFirewall:
		return e.provider.ResetFirewall(ctx)
	case models.FixCustomCommand:
		return e.provider.RunCustomCommand(ctx, t.Command, t.Args)
	case models.FixReconnectWifi:
		return errs.New(errs.PrerequisiteMissing, "autofix.invoke", "wifi reconnect requires a WifiProvider, not wired in this plan")
	default:
		return errs.New(errs.Autofix, "autofix.invoke", "unknown fix type: "+string(t.Kind))
	}
}

// captureState snapshots whatever pre-image a reversible action needs.
func (e *Engine) captureState(ctx context.Context, action models.FixAction) (models.RollbackState, error) {
	if action.Type.Kind == models.FixSetDnsServers {
		prev, err := e.provider.GetDNSServers(ctx, action.Type.Iface)
		if err != nil {
			return models.RollbackState{}, err
		}
		return models.RollbackState{Kind: models.RollbackDnsServers, Iface: action.Type.Iface, Servers: prev}, nil
	}
	return models.RollbackState{Kind: models.RollbackNone}, nil
}

// restore reverses one captured RollbackState.
func (e *Engine) restore(ctx context.Context, state models.RollbackState) error {
	switch state.Kind {
	case models.RollbackNone:
		return nil
	case models.RollbackDnsServers:
		return e.provider.SetDNSServers(ctx, state.Iface, state.Servers)
	case models.RollbackConfigFile:
		if err := os.WriteFile(state.Path, state.Contents, 0o644); err != nil {
			return errs.Wrap(errs.Autofix, "autofix.restore", "failed to restore config file "+state.Path, err)
		}
		return nil
	case models.RollbackMultiple:
		for _, s := range state.States {
			if err := e.restore(ctx, s); err != nil {
				return err
			}
		}
		return nil
	default:
		return errs.New(errs.Autofix, "autofix.restore", "unsupported rollback state: "+string(state.Kind))
	}
}

// Restore reverses a previously persisted RollbackPoint by ID and marks it
// invalid once the reversal succeeds.
func (e *Engine) Restore(ctx context.Context, pointID string) error {
	point, err := e.rollback.Get(pointID)
	if err != nil {
		return err
	}
	if !point.Valid {
		return errs.New(errs.Autofix, "autofix.Restore", "rollback point already consumed: "+pointID)
	}
	if err := e.restore(ctx, point.State); err != nil {
		return err
	}
	return e.rollback.MarkInvalid(pointID)
}
