package domain

import "testing"

func TestUpsertModuleRefusesToMutateTerminalState(t *testing.T) {
	m := &SessionMetrics{}
	m.UpsertModule(ModuleMetric{Name: "discovery", Status: ModuleCompleted, Attempt: 1})

	m.UpsertModule(ModuleMetric{Name: "discovery", Status: ModuleRunning, Attempt: 2})

	got, ok := m.ModuleByName("discovery")
	if !ok {
		t.Fatal("discovery module not found")
	}
	if got.Status != ModuleCompleted {
		t.Errorf("Status = %v, want %v (terminal state must not be overwritten)", got.Status, ModuleCompleted)
	}
	if got.Attempt != 1 {
		t.Errorf("Attempt = %d, want 1 (record must be untouched)", got.Attempt)
	}
}

func TestUpsertModuleAllowsTransitionsBeforeTerminal(t *testing.T) {
	m := &SessionMetrics{}
	m.UpsertModule(ModuleMetric{Name: "fingerprinting", Status: ModulePending})
	m.UpsertModule(ModuleMetric{Name: "fingerprinting", Status: ModuleRunning, Attempt: 1})
	m.UpsertModule(ModuleMetric{Name: "fingerprinting", Status: ModuleFailed, Attempt: 1, Error: "timeout"})

	got, ok := m.ModuleByName("fingerprinting")
	if !ok {
		t.Fatal("fingerprinting module not found")
	}
	if got.Status != ModuleFailed {
		t.Errorf("Status = %v, want %v", got.Status, ModuleFailed)
	}
}

func TestUpsertModuleAppendsNewModules(t *testing.T) {
	m := &SessionMetrics{}
	m.UpsertModule(ModuleMetric{Name: "discovery", Status: ModuleRunning})
	m.UpsertModule(ModuleMetric{Name: "fingerprinting", Status: ModuleRunning})

	if len(m.Modules) != 2 {
		t.Fatalf("got %d modules, want 2", len(m.Modules))
	}
}

func TestModuleByNameNotFound(t *testing.T) {
	m := &SessionMetrics{}
	_, ok := m.ModuleByName("nonexistent")
	if ok {
		t.Error("expected ok=false for a module that was never upserted")
	}
}

func TestDiscoveredHostKeyDedup(t *testing.T) {
	a := DiscoveredHost{IP: "10.0.0.5", Port: 554}
	b := DiscoveredHost{IP: "10.0.0.5", Port: 554, Banner: "different banner, same identity"}
	c := DiscoveredHost{IP: "10.0.0.5", Port: 80}

	if a.Key() != b.Key() {
		t.Error("hosts with the same IP:port must share a dedup key regardless of other fields")
	}
	if a.Key() == c.Key() {
		t.Error("hosts with different ports must have different dedup keys")
	}
}

func TestTargetSpecIsCIDR(t *testing.T) {
	withCIDR := TargetSpec{CIDR: "192.168.1.0/24"}
	if !withCIDR.IsCIDR() {
		t.Error("expected IsCIDR() true when CIDR is set")
	}
	withHost := TargetSpec{Host: "192.168.1.5"}
	if withHost.IsCIDR() {
		t.Error("expected IsCIDR() false when only Host is set")
	}
}

func TestCredentialDedupKey(t *testing.T) {
	a := Credential{Username: "admin", Password: "12345"}
	b := Credential{Username: "admin", Password: "12345"}
	c := Credential{Username: "admin", Password: "admin"}

	if a.DedupKey() != b.DedupKey() {
		t.Error("identical credentials must produce identical dedup keys")
	}
	if a.DedupKey() == c.DedupKey() {
		t.Error("distinct credentials must produce distinct dedup keys")
	}
}

func TestFingerprintResultHasProtocol(t *testing.T) {
	fp := FingerprintResult{Protocols: []Protocol{ProtoHTTP, ProtoRTSP}}
	if !fp.HasProtocol(ProtoRTSP) {
		t.Error("expected HasProtocol(RTSP) true")
	}
	if fp.HasProtocol(ProtoONVIF) {
		t.Error("expected HasProtocol(ONVIF) false")
	}
}
