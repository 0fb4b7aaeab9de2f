package execx

import (
	"os/exec"
	"strings"
	"testing"
	"time"
)

func requireSh(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestOSRunner_Output(t *testing.T) {
	t.Parallel()
	requireSh(t)

	r := NewOSRunner()
	out, err := r.Output("sh", "-c", "printf '  Enabled: Yes\\n\\n'")
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	if out != "Enabled: Yes" {
		t.Fatalf("out=%q", out)
	}
}

func TestOSRunner_RunIncludesStderr(t *testing.T) {
	t.Parallel()
	requireSh(t)

	r := NewOSRunner()
	err := r.Run("sh", "-c", "echo 'bad service' >&2; exit 4")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "bad service") {
		t.Fatalf("err=%v", err)
	}
}

func TestOSRunner_Timeout(t *testing.T) {
	t.Parallel()
	requireSh(t)

	r := &OSRunner{Timeout: 100 * time.Millisecond}
	start := time.Now()
	_, err := r.Output("sh", "-c", "sleep 5")
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if time.Since(start) > 3*time.Second {
		t.Fatalf("timeout not enforced: %s", time.Since(start))
	}
}
