package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apperrors "github.com/tessro/encore/internal/errors"
)

func catalogSong(base, id string) string {
	return fmt.Sprintf(`{
		"id": %q,
		"name": "Song %s",
		"duration": 200,
		"album": {"id": "al", "name": "Roads", "url": "https://example/al"},
		"artists": {"primary": [{"id": "ar", "name": "Nova"}], "featured": [], "all": []},
		"image": [],
		"downloadUrl": [{"quality": "320kbps", "url": "%s/audio/%s.mp3"}]
	}`, id, id, base, id)
}

func newCatalog(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := strings.CutPrefix(r.URL.Path, "/audio/"); ok {
			_, _ = w.Write([]byte("ID3" + id))
			return
		}
		switch r.URL.Path {
		case "/songs":
			var parts []string
			for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
				if id != "" && id != "missing" {
					parts = append(parts, catalogSong(srv.URL, id))
				}
			}
			fmt.Fprintf(w, `{"success": true, "data": [%s]}`, strings.Join(parts, ","))
		case "/search/songs":
			fmt.Fprintf(w, `{"success": true, "data": {"total": 1, "start": 0, "results": [%s]}}`, catalogSong(srv.URL, "found"))
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// writeTestConfig writes a config that keeps everything under a temp dir.
func writeTestConfig(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := fmt.Sprintf(`
[catalog]
base_url = %q

[storage]
data_dir = %q
engine = "bolt"

[playback]
audio = false

[media_session]
enabled = false

[notify]
desktop = false

[log]
level = "error"
`, baseURL, filepath.Join(dir, "data"))
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func resetFlags() {
	jsonOut, verbose, ephemeral = false, false, false
	queueLimit, queueAddNext = 20, false
	historyLimit, historySearches, historyClear = 20, false, false
	cacheYes, cacheFromQueue = false, false
	cacheExportDir, cacheExportArchive = "", ""
	backupYes = false
	searchLimit = 10
	volumeUp, volumeDown = false, false
}

func runCLI(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	resetFlags()

	var buf bytes.Buffer
	prev := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = prev })

	rootCmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	stdout = prev
	return buf.String(), err
}

func TestQueueAddShowAndEdit(t *testing.T) {
	cfgPath := writeTestConfig(t, newCatalog(t).URL)

	if _, err := runCLI(t, cfgPath, "queue", "add", "a", "b", "c"); err != nil {
		t.Fatalf("queue add error = %v", err)
	}

	out, err := runCLI(t, cfgPath, "--json", "queue", "show")
	if err != nil {
		t.Fatalf("queue show error = %v", err)
	}
	var shown struct {
		Total int `json:"total"`
		Queue []struct {
			Position int `json:"position"`
			Song     struct {
				ID string `json:"id"`
			} `json:"song"`
		} `json:"queue"`
	}
	if err := json.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("queue show output %q: %v", out, err)
	}
	if shown.Total != 3 || shown.Queue[2].Song.ID != "c" || shown.Queue[0].Position != 1 {
		t.Fatalf("queue = %+v", shown)
	}

	if _, err := runCLI(t, cfgPath, "queue", "move", "3", "1"); err != nil {
		t.Fatalf("queue move error = %v", err)
	}
	if _, err := runCLI(t, cfgPath, "queue", "remove", "2"); err != nil {
		t.Fatalf("queue remove error = %v", err)
	}

	out, err = runCLI(t, cfgPath, "--json", "queue")
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, e := range shown.Queue {
		ids = append(ids, e.Song.ID)
	}
	if strings.Join(ids, ",") != "c,b" {
		t.Errorf("queue = %v, want [c b]", ids)
	}

	if _, err := runCLI(t, cfgPath, "queue", "clear"); err != nil {
		t.Fatal(err)
	}
	out, _ = runCLI(t, cfgPath, "queue")
	if !strings.Contains(out, "Queue is empty") {
		t.Errorf("queue after clear = %q", out)
	}
}

func TestQueueAddUnknownSong(t *testing.T) {
	cfgPath := writeTestConfig(t, newCatalog(t).URL)

	_, err := runCLI(t, cfgPath, "queue", "add", "missing")
	if !errors.Is(err, apperrors.ErrSongNotFound) {
		t.Fatalf("error = %v, want ErrSongNotFound", err)
	}
}

func TestQueueRejectsBadPosition(t *testing.T) {
	cfgPath := writeTestConfig(t, newCatalog(t).URL)

	if _, err := runCLI(t, cfgPath, "queue", "remove", "0"); err == nil {
		t.Fatal("expected an error for position 0")
	}
}

func TestSearchJSON(t *testing.T) {
	cfgPath := writeTestConfig(t, newCatalog(t).URL)

	out, err := runCLI(t, cfgPath, "--json", "search", "night")
	if err != nil {
		t.Fatalf("search error = %v", err)
	}
	if !strings.Contains(out, `"id": "found"`) {
		t.Errorf("search output = %q", out)
	}

	out, err = runCLI(t, cfgPath, "--json", "history", "--searches")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "night") {
		t.Errorf("search history = %q", out)
	}
}

func TestBackupExportCheckImport(t *testing.T) {
	cfgPath := writeTestConfig(t, newCatalog(t).URL)
	if _, err := runCLI(t, cfgPath, "queue", "add", "a"); err != nil {
		t.Fatal(err)
	}

	backup := filepath.Join(t.TempDir(), "backup.json")
	if _, err := runCLI(t, cfgPath, "backup", "export", backup); err != nil {
		t.Fatalf("backup export error = %v", err)
	}

	out, err := runCLI(t, cfgPath, "--json", "backup", "check", backup)
	if err != nil {
		t.Fatalf("backup check error = %v", err)
	}
	if !strings.Contains(out, `"status": "valid"`) {
		t.Errorf("check output = %q", out)
	}

	if _, err := runCLI(t, cfgPath, "queue", "clear"); err != nil {
		t.Fatal(err)
	}
	if _, err := runCLI(t, cfgPath, "backup", "import", "--yes", backup); err != nil {
		t.Fatalf("backup import error = %v", err)
	}
	out, _ = runCLI(t, cfgPath, "--json", "queue")
	if !strings.Contains(out, `"id": "a"`) {
		t.Errorf("queue after import = %q", out)
	}
}

func TestBackupImportRejectsInvalidFile(t *testing.T) {
	cfgPath := writeTestConfig(t, newCatalog(t).URL)
	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte(`{"version": "1"}`), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := runCLI(t, cfgPath, "backup", "import", "--yes", bad)
	if !errors.Is(err, apperrors.ErrBackupValidation) {
		t.Fatalf("error = %v, want ErrBackupValidation", err)
	}
}

func TestConfigSetValidates(t *testing.T) {
	cfgPath := writeTestConfig(t, newCatalog(t).URL)

	if _, err := runCLI(t, cfgPath, "config", "set", "playback.volume", "40"); err != nil {
		t.Fatalf("config set error = %v", err)
	}
	data, _ := os.ReadFile(cfgPath)
	if !strings.Contains(string(data), "volume = 40") {
		t.Errorf("config file = %s", data)
	}

	_, err := runCLI(t, cfgPath, "config", "set", "playback.volume", "400")
	if !errors.Is(err, apperrors.ErrInvalidConfig) {
		t.Fatalf("error = %v, want ErrInvalidConfig", err)
	}
	after, _ := os.ReadFile(cfgPath)
	if !bytes.Equal(data, after) {
		t.Error("invalid value should leave the file unchanged")
	}

	if _, err := runCLI(t, cfgPath, "config", "set", "playback.volume", "loud"); err == nil {
		t.Error("expected an error for a non-integer volume")
	}
}

func TestCacheListEmpty(t *testing.T) {
	cfgPath := writeTestConfig(t, newCatalog(t).URL)

	out, err := runCLI(t, cfgPath, "--json", "cache", "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"total": 0`) {
		t.Errorf("cache list = %q", out)
	}

	if _, err := runCLI(t, cfgPath, "cache", "download"); err == nil {
		t.Error("expected an error without ids or --queue")
	}
}

func TestCacheDownloadQueue(t *testing.T) {
	cfgPath := writeTestConfig(t, newCatalog(t).URL)

	if _, err := runCLI(t, cfgPath, "cache", "download", "--queue"); !errors.Is(err, apperrors.ErrQueueEmpty) {
		t.Fatalf("download with empty queue error = %v, want ErrQueueEmpty", err)
	}

	if _, err := runCLI(t, cfgPath, "queue", "add", "a", "b"); err != nil {
		t.Fatal(err)
	}
	out, err := runCLI(t, cfgPath, "--json", "cache", "download", "--queue")
	if err != nil {
		t.Fatalf("cache download error = %v (output %q)", err, out)
	}
	if strings.Count(out, `"status": "cached"`) != 2 {
		t.Errorf("download output = %q", out)
	}

	out, err = runCLI(t, cfgPath, "--json", "cache", "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"total": 2`) {
		t.Errorf("cache list = %q", out)
	}

	if _, err := runCLI(t, cfgPath, "cache", "remove", "a"); err != nil {
		t.Fatal(err)
	}
	out, _ = runCLI(t, cfgPath, "--json", "cache", "list")
	if !strings.Contains(out, `"total": 1`) {
		t.Errorf("cache list after remove = %q", out)
	}
}

func TestParsePosition(t *testing.T) {
	tests := []struct {
		arg     string
		want    int
		wantErr bool
	}{
		{"1", 0, false},
		{"12", 11, false},
		{"0", 0, true},
		{"-2", 0, true},
		{"x", 0, true},
	}
	for _, tt := range tests {
		got, err := parsePosition(tt.arg)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parsePosition(%q) = %d, %v", tt.arg, got, err)
		}
	}
}

func TestTypedValue(t *testing.T) {
	if v, err := typedValue("playback.volume", "50"); err != nil || v != 50 {
		t.Errorf("typedValue(volume) = %v, %v", v, err)
	}
	if v, err := typedValue("playback.shuffle", "true"); err != nil || v != true {
		t.Errorf("typedValue(shuffle) = %v, %v", v, err)
	}
	if v, err := typedValue("tui.theme", "dark"); err != nil || v != "dark" {
		t.Errorf("typedValue(theme) = %v, %v", v, err)
	}
	if _, err := typedValue("download.images", "maybe"); err == nil {
		t.Error("expected an error for a bad bool")
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := FormatDuration(3*time.Minute + 5*time.Second); got != "3:05" {
		t.Errorf("FormatDuration() = %q", got)
	}
	if got := FormatDuration(time.Hour + 2*time.Minute); got != "1:02:00" {
		t.Errorf("FormatDuration() = %q", got)
	}
	if got := TruncateString("abcdefghij", 6); got != "abc..." {
		t.Errorf("TruncateString() = %q", got)
	}
	if got := FormatBytes(1500); got != "1.5 kB" {
		t.Errorf("FormatBytes() = %q", got)
	}
	if got := FormatAgo(time.Time{}); got != "-" {
		t.Errorf("FormatAgo(zero) = %q", got)
	}
}
