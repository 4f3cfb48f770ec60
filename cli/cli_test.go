package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/world-mood/config"
	"github.com/lixenwraith/world-mood/logging"
	"github.com/lixenwraith/world-mood/mood"
	"github.com/lixenwraith/world-mood/pipeline"
	"github.com/lixenwraith/world-mood/store"
	"github.com/lixenwraith/world-mood/timewindow"
)

// resetFlags restores every flag to its default; cobra keeps parsed values between Execute calls
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(RootCmd)
	t.Setenv("WORLDMOOD_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&out)
	RootCmd.SetArgs(args)
	t.Cleanup(func() {
		RootCmd.SetOut(nil)
		RootCmd.SetErr(nil)
		RootCmd.SetArgs(nil)
	})
	err := RootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func useSQLite(t *testing.T) {
	t.Helper()
	t.Setenv("WORLDMOOD_STORE_DRIVER", "sqlite")
	t.Setenv("WORLDMOOD_STORE_SQLITE_PATH", filepath.Join(t.TempDir(), "moods.db"))
}

func TestKinds(t *testing.T) {
	out, err := execute(t, "kinds")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, len(mood.Kinds()))
	assert.Contains(t, lines[0], "happy")
	assert.Contains(t, lines[0], mood.KindHappy.Color().Hex())

	out, err = execute(t, "kinds", "--format", "json")
	require.NoError(t, err)
	var kinds []kindInfo
	require.NoError(t, json.Unmarshal([]byte(out), &kinds))
	require.Len(t, kinds, len(mood.Kinds()))
	assert.Equal(t, "Happy", kinds[0].Label)
}

func TestSendAndHistory(t *testing.T) {
	useSQLite(t)

	out, err := execute(t, "send", "love", "--location", "tokyo")
	require.NoError(t, err)
	assert.Equal(t, "sent Love from Tokyo\n", out)

	out, err = execute(t, "send", "sad", "--lat", "10.5", "--lng", "20", "-f", "json")
	require.NoError(t, err)
	var sent store.EventRecord
	require.NoError(t, json.Unmarshal([]byte(out), &sent))
	assert.Equal(t, "sad", sent.MoodType)
	assert.Equal(t, OriginCLI, sent.Origin)
	assert.Equal(t, 10.5, sent.Lat)
	assert.NotEmpty(t, sent.ID)

	out, err = execute(t, "history", "-f", "json")
	require.NoError(t, err)
	var recs []store.EventRecord
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	require.Len(t, recs, 2)
	assert.Equal(t, "love", recs[0].MoodType)
	assert.Equal(t, "Tokyo", recs[0].LocationName)

	out, err = execute(t, "history")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Live: 2 moods, mostly Love"), out)
	assert.Contains(t, out, "Tokyo")

	out, err = execute(t, "history", "--hours", "6", "-f", "json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	assert.Empty(t, recs)
}

func TestSend_Errors(t *testing.T) {
	_, err := execute(t, "send", "bored")
	assert.ErrorIs(t, err, mood.ErrUnknownKind)

	_, err = execute(t, "send", "happy", "-l", "Atlantis")
	assert.ErrorIs(t, err, mood.ErrInvalidLocation)

	_, err = execute(t, "send", "happy", "--lat", "95")
	assert.ErrorIs(t, err, mood.ErrInvalidLocation)

	_, err = execute(t, "send", "happy")
	assert.ErrorIs(t, err, errNoStore, "default driver is none")

	_, err = execute(t, "send")
	assert.Error(t, err)
}

func TestHistory_Errors(t *testing.T) {
	_, err := execute(t, "history")
	assert.ErrorIs(t, err, errNoStore)

	_, err = execute(t, "history", "--hours", "-1")
	assert.ErrorIs(t, err, timewindow.ErrInvalidWindow)
}

func TestLoadConfig_Overrides(t *testing.T) {
	_, err := execute(t, "kinds", "--store", "carrier-pigeon")
	require.NoError(t, err, "kinds does not load config")

	resetFlags(RootCmd)
	t.Setenv("WORLDMOOD_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	storeDriver, logLevel = "MEMORY", "debug"
	t.Cleanup(func() { storeDriver, logLevel = "", "" })

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)

	storeDriver = "carrier-pigeon"
	_, err = loadConfig()
	assert.Error(t, err)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	cfg := config.StoreConfig{Driver: "none", Timeout: time.Second}

	st, err := openStore(ctx, cfg, logging.Discard())
	require.NoError(t, err)
	assert.Nil(t, st)

	cfg.Driver = "memory"
	st, err = openStore(ctx, cfg, logging.Discard())
	require.NoError(t, err)
	require.NotNil(t, st)
	st.Close()

	cfg.Driver = "remote"
	cfg.RemoteURL = "http://127.0.0.1:1"
	st, err = openStore(ctx, cfg, logging.Discard())
	assert.ErrorIs(t, err, store.ErrUnavailable)
	assert.Nil(t, st)

	cfg.Driver = "bogus"
	_, err = openStore(ctx, cfg, logging.Discard())
	assert.Error(t, err)
}

func TestNewLocator(t *testing.T) {
	lg := logging.Discard()

	assert.Nil(t, newLocator(config.LocationConfig{Provider: "none"}, lg))

	loc := newLocator(config.LocationConfig{Provider: "static", Lat: 1, Lng: 2}, lg)
	require.IsType(t, pipeline.StaticLocator{}, loc)
	got, err := loc.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pipeline.UserLocationName, got.Name)
	assert.Equal(t, 2.0, got.Lng)

	loc = newLocator(config.LocationConfig{Provider: "http", URL: "http://127.0.0.1:1", MaxAge: time.Minute}, lg)
	assert.IsType(t, &pipeline.CachedLocator{}, loc)
}

func TestFindLocation(t *testing.T) {
	loc, ok := findLocation("new york")
	require.True(t, ok)
	assert.Equal(t, "New York", loc.Name)

	_, ok = findLocation("Gotham")
	assert.False(t, ok)
}
