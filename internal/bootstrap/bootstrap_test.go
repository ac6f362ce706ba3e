package bootstrap

import "testing"

func TestNewBootstrapperStartsNotDone(t *testing.T) {
	b := New(Spec{RootUsername: "root", RootPassword: "secret", AppDatabase: "app", AppUsername: "appuser", AppPassword: "apppass", SentinelCollection: "users"})
	if b.Done() {
		t.Fatal("expected a freshly constructed Bootstrapper to not be done")
	}
}
