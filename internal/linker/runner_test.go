package linker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jimwitte/baserow-record-linker/internal/linker"
)

type spyLinker struct {
	next  linker.ConfigLinker
	calls []string
}

func (s *spyLinker) Link(ctx context.Context, cfg linker.LinkConfig) linker.Result {
	s.calls = append(s.calls, cfg.ID())
	return s.next.Link(ctx, cfg)
}

func twoConfigStore() *fakeStore {
	store := newFakeStore()
	store.addTable("1", "Person", map[string]any{"Company Name": "a", "Company": ""})
	store.addTable("2", "Key", map[string]any{"Key": 1, "Name": "a"})
	store.addTable("3", "Person", map[string]any{"Company Name": "a", "Company": ""})
	store.addTable("4", "Key", map[string]any{"Key": 2, "Name": "a"})
	return store
}

func twoConfigs() []linker.LinkConfig {
	first := companiesConfig()
	first.Name = "first"
	second := companiesConfig()
	second.Name = "second"
	second.SourceTableID = "3"
	second.TargetTableID = "4"
	return []linker.LinkConfig{first, second}
}

func TestRun_AbortStopsAtFirstFailedConfig(t *testing.T) {
	t.Parallel()

	store := twoConfigStore()
	store.listErr["1"] = errors.New("gateway timeout")
	spy := &spyLinker{next: linker.New(store, zerolog.Nop(), linker.FailurePolicyAbort)}

	report, err := linker.NewRunner(spy, zerolog.Nop(), linker.FailurePolicyAbort).Run(context.Background(), twoConfigs())
	require.Error(t, err)

	var transportErr *linker.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, []string{"first"}, spy.calls)
	assert.Empty(t, store.readsOf("3"))
	assert.Empty(t, store.readsOf("4"))
	require.Len(t, report.Results, 1)
	assert.Equal(t, linker.ErrorKindTransport, report.Results[0].Kind())
}

func TestRun_InvalidConfigAbortsRemaining(t *testing.T) {
	t.Parallel()

	store := twoConfigStore()
	cfgs := twoConfigs()
	cfgs[0].SourceMatchField = ""
	spy := &spyLinker{next: linker.New(store, zerolog.Nop(), linker.FailurePolicyAbort)}

	_, err := linker.NewRunner(spy, zerolog.Nop(), linker.FailurePolicyAbort).Run(context.Background(), cfgs)

	var cfgErr *linker.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, linker.KeySourceMatchField, cfgErr.Key)
	assert.Equal(t, []string{"first"}, spy.calls)
	assert.Empty(t, store.reads)
}

func TestRun_ContinueRunsEveryConfig(t *testing.T) {
	t.Parallel()

	store := twoConfigStore()
	store.listErr["1"] = errors.New("gateway timeout")
	l := linker.New(store, zerolog.Nop(), linker.FailurePolicyContinue)

	report, err := linker.NewRunner(l, zerolog.Nop(), linker.FailurePolicyContinue).Run(context.Background(), twoConfigs())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config 1 (first)")

	require.Len(t, report.Results, 2)
	assert.Len(t, report.Failed(), 1)
	assert.Equal(t, 1, report.Linked())
	assert.Equal(t, 2, store.field("3", 1, "Company"))
}

func TestRun_AllSucceed(t *testing.T) {
	t.Parallel()

	store := twoConfigStore()
	l := linker.New(store, zerolog.Nop(), linker.FailurePolicyAbort)

	report, err := linker.NewRunner(l, zerolog.Nop(), linker.FailurePolicyAbort).Run(context.Background(), twoConfigs())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Linked())
	assert.Zero(t, report.Unmatched())
	assert.Empty(t, report.Failed())
}
