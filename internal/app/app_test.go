package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"notifylog/internal/mail/mailtest"
	"notifylog/internal/notifier"
)

const appConfig = `
logging:
  level: %s
  file:
    enabled: true
    path: %s
  digest:
    enabled: true
    recipients: [admin@example.com]
    subject: notifylog digest
mail:
  sender: alerts@example.com
notifier:
  days_to_wait: 7
  history:
    driver: file
    path: %s
notifications:
  - name: alerts
    subject_prefix: "Disk Full:"
    recipients: [ops@example.com]
`

type testEnv struct {
	dir, cfgPath, logPath, histPath string
}

func newEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{
		dir:      dir,
		cfgPath:  filepath.Join(dir, "notifylog.yaml"),
		logPath:  filepath.Join(dir, "logs", "notifylog.log"),
		histPath: filepath.Join(dir, "notifylog.notify.dat"),
	}
	env.writeConfig(t, "info")
	return env
}

func (e testEnv) writeConfig(t *testing.T, level string) {
	t.Helper()
	body := fmt.Sprintf(appConfig, level, e.logPath, e.histPath)
	if err := os.WriteFile(e.cfgPath, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestAppSendAndPersistAcrossRuns(t *testing.T) {
	env := newEnv(t)
	clk := &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	ctx := context.Background()

	rec := mailtest.NewRecorder()
	a, err := New(env.cfgPath, rec, WithClock(clk.now))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := a.SendNotification(ctx, "alerts", "disk at 95%", "host1")
	if err != nil || out != notifier.OutcomeSent {
		t.Fatalf("send: (%v, %v)", out, err)
	}
	if err := a.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := a.Close(ctx); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	sent := rec.Sent()
	if len(sent) != 2 {
		t.Fatalf("sent %d messages, want notification + digest", len(sent))
	}
	if sent[0].Subject != "Disk Full: host1" {
		t.Fatalf("notification subject = %q", sent[0].Subject)
	}
	if sent[1].Subject != "notifylog digest" || !strings.Contains(sent[1].Body, "notification sent") {
		t.Fatalf("digest = %+v", sent[1])
	}
	if !rec.IsClosed() {
		t.Fatal("transport not closed")
	}
	logs, err := os.ReadFile(env.logPath)
	if err != nil || !strings.Contains(string(logs), "[INFO] notification sent") {
		t.Fatalf("log file: %q (%v)", logs, err)
	}
	if _, err := os.Stat(env.histPath); err != nil {
		t.Fatalf("history not written: %v", err)
	}

	clk.t = clk.t.Add(48 * time.Hour)
	rec = mailtest.NewRecorder()
	a, err = New(env.cfgPath, rec, WithClock(clk.now))
	if err != nil {
		t.Fatalf("New (run 2): %v", err)
	}
	defer a.Close(ctx)
	out, err = a.SendNotification(ctx, "alerts", "disk at 95%", "host1")
	if err != nil || out != notifier.OutcomeSuppressed {
		t.Fatalf("run 2: (%v, %v)", out, err)
	}
}

func TestAppDefaultsToPickupTransport(t *testing.T) {
	env := newEnv(t)
	pickup := filepath.Join(env.dir, "outbox")
	body := fmt.Sprintf(appConfig, "info", env.logPath, env.histPath)
	body = strings.Replace(body, "  sender: alerts@example.com", "  sender: alerts@example.com\n  pickup_dir: "+pickup, 1)
	if err := os.WriteFile(env.cfgPath, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	a, err := New(env.cfgPath, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := a.SendNotification(context.Background(), "alerts", "x", ""); err != nil {
		t.Fatal(err)
	}
	_ = a.Close(context.Background())

	files, err := filepath.Glob(filepath.Join(pickup, "*.eml"))
	if err != nil || len(files) < 1 {
		t.Fatalf("pickup files: %v (%v)", files, err)
	}
}

func TestAppRejectsInvalidConfig(t *testing.T) {
	env := newEnv(t)
	if err := os.WriteFile(env.cfgPath, []byte("mail:\n  sender: nope\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := New(env.cfgPath, mailtest.NewRecorder()); err == nil {
		t.Fatal("expected error")
	}
}

func TestAppHotReloadsLogging(t *testing.T) {
	env := newEnv(t)
	a, err := New(env.cfgPath, mailtest.NewRecorder())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer a.Close(context.Background())
	if err := a.Start(ctx); err == nil {
		t.Fatal("second Start should fail")
	}

	// Let the watcher attach before changing the file.
	time.Sleep(150 * time.Millisecond)
	env.writeConfig(t, "debug")

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		b, _ := os.ReadFile(env.logPath)
		if strings.Contains(string(b), "config change summary") {
			if a.Config().Logging.Level != "debug" {
				t.Fatalf("committed level = %q", a.Config().Logging.Level)
			}
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatal("reload was not applied")
}
