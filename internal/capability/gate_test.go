package capability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/alanmeadows/catcode/internal/catclient"
	"github.com/alanmeadows/catcode/internal/catclient/catclientmock"
	"github.com/alanmeadows/catcode/internal/session"
	"github.com/alanmeadows/catcode/internal/task"
)

type fixedState session.State

func (s fixedState) State() session.State { return session.State(s) }

func settingsFor(kind, model string) *catclient.LLMSettings {
	return &catclient.LLMSettings{
		Settings:              []catclient.LLMSetting{{Name: kind, Value: map[string]any{"model_name": model}}},
		SelectedConfiguration: kind,
	}
}

func pluginsWith(ids ...string) *catclient.PluginList {
	list := &catclient.PluginList{}
	for _, id := range ids {
		list.Installed = append(list.Installed, catclient.Plugin{ID: id})
	}
	return list
}

func newGate(t *testing.T, state session.State) (*Gate, *catclientmock.MockAPI) {
	t.Helper()
	ctrl := gomock.NewController(t)
	api := catclientmock.NewMockAPI(ctrl)
	g := New(api, fixedState(state), Options{PluginID: "code_assistant", Table: BuiltinTable()})
	return g, api
}

func TestCheck_BeforeRefreshIsDenied(t *testing.T) {
	g, _ := newGate(t, session.Connected)

	err := g.Check(task.Comment)
	var denied *DeniedError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, ReasonNotChecked, denied.Reason)
	assert.ErrorIs(t, err, ErrCapabilityDenied)
}

func TestRefresh_AllowsSupportedModel(t *testing.T) {
	g, api := newGate(t, session.Connected)
	api.EXPECT().ListPlugins(gomock.Any()).Return(pluginsWith("core_plugin", "code_assistant"), nil)
	api.EXPECT().GetLLMSettings(gomock.Any()).Return(settingsFor("LLMOpenAIChatConfig", "gpt-4o-mini"), nil)

	snap, err := g.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.PluginInstalled)
	assert.True(t, snap.IsModelCompatible)
	assert.Equal(t, "gpt-4o-mini", snap.ConfiguredModelName)
	assert.Equal(t, []task.Kind{task.Comment, task.GenerateFunction}, snap.SupportedTasks)
	assert.False(t, snap.CheckedAt.IsZero())

	assert.NoError(t, g.Check(task.Comment))
	assert.NoError(t, g.Check(task.GenerateFunction))
}

func TestRefresh_ProviderQualifiedModel(t *testing.T) {
	g, api := newGate(t, session.Connected)
	api.EXPECT().ListPlugins(gomock.Any()).Return(pluginsWith("code_assistant"), nil)
	api.EXPECT().GetLLMSettings(gomock.Any()).Return(settingsFor("LLMOllamaConfig", "ollama/qwen2.5-coder:7b"), nil)

	_, err := g.Refresh(context.Background())
	require.NoError(t, err)
	assert.NoError(t, g.Check(task.Comment))
}

func TestCheck_PartialTaskSupport(t *testing.T) {
	g, api := newGate(t, session.Connected)
	api.EXPECT().ListPlugins(gomock.Any()).Return(pluginsWith("code_assistant"), nil)
	api.EXPECT().GetLLMSettings(gomock.Any()).Return(settingsFor("LLMOpenAIChatConfig", "gpt-3.5-turbo"), nil)

	_, err := g.Refresh(context.Background())
	require.NoError(t, err)
	assert.NoError(t, g.Check(task.Comment))

	var denied *DeniedError
	require.True(t, errors.As(g.Check(task.GenerateFunction), &denied))
	assert.Equal(t, ReasonModelIncompatible, denied.Reason)
	assert.Contains(t, denied.Error(), "catcode llm")
}

func TestCheck_PluginMissing(t *testing.T) {
	g, api := newGate(t, session.Connected)
	api.EXPECT().ListPlugins(gomock.Any()).Return(pluginsWith("core_plugin"), nil)
	api.EXPECT().GetLLMSettings(gomock.Any()).Return(settingsFor("LLMOpenAIChatConfig", "gpt-4o"), nil)

	_, err := g.Refresh(context.Background())
	require.NoError(t, err)

	var denied *DeniedError
	require.True(t, errors.As(g.Check(task.Comment), &denied))
	assert.Equal(t, ReasonPluginMissing, denied.Reason)
	assert.Contains(t, denied.Error(), "code_assistant")
	assert.Contains(t, denied.Error(), "catcode plugins")
}

func TestCheck_UnknownConfigKindIsDenied(t *testing.T) {
	for _, kind := range []string{"LLMShinyNewConfig", "LLMDefaultConfig", ""} {
		t.Run(kind, func(t *testing.T) {
			g, api := newGate(t, session.Connected)
			api.EXPECT().ListPlugins(gomock.Any()).Return(pluginsWith("code_assistant"), nil)
			api.EXPECT().GetLLMSettings(gomock.Any()).Return(settingsFor(kind, "gpt-4o"), nil)

			_, err := g.Refresh(context.Background())
			require.NoError(t, err)

			for _, k := range task.All() {
				var denied *DeniedError
				require.True(t, errors.As(g.Check(k), &denied))
				assert.Equal(t, ReasonUnknownConfig, denied.Reason)
			}
		})
	}
}

func TestCheck_PureBetweenRefreshes(t *testing.T) {
	g, api := newGate(t, session.Connected)
	api.EXPECT().ListPlugins(gomock.Any()).Return(pluginsWith("code_assistant"), nil)
	api.EXPECT().GetLLMSettings(gomock.Any()).Return(settingsFor("LLMOpenAIChatConfig", "gpt-3.5-turbo"), nil)
	_, err := g.Refresh(context.Background())
	require.NoError(t, err)

	for _, k := range task.All() {
		first := g.Check(k)
		second := g.Check(k)
		assert.Equal(t, first, second)
	}
}

func TestRefresh_RequiresConnection(t *testing.T) {
	g, _ := newGate(t, session.Connecting)

	_, err := g.Refresh(context.Background())
	assert.ErrorIs(t, err, session.ErrNotConnected)
	_, err = g.RefreshPlugins(context.Background())
	assert.ErrorIs(t, err, session.ErrNotConnected)
	_, err = g.RefreshLLM(context.Background())
	assert.ErrorIs(t, err, session.ErrNotConnected)
}

func TestRefresh_ErrorKeepsPreviousSnapshot(t *testing.T) {
	g, api := newGate(t, session.Connected)
	api.EXPECT().ListPlugins(gomock.Any()).Return(pluginsWith("code_assistant"), nil).Times(2)
	gomock.InOrder(
		api.EXPECT().GetLLMSettings(gomock.Any()).Return(settingsFor("LLMOpenAIChatConfig", "gpt-4o"), nil),
		api.EXPECT().GetLLMSettings(gomock.Any()).Return(nil, errors.New("503")),
	)

	before, err := g.Refresh(context.Background())
	require.NoError(t, err)

	_, err = g.Refresh(context.Background())
	require.Error(t, err)
	assert.Same(t, before, g.Snapshot())
	assert.NoError(t, g.Check(task.Comment))
}

func TestRefreshPlugins_CopiesModelFacts(t *testing.T) {
	g, api := newGate(t, session.Connected)
	api.EXPECT().GetLLMSettings(gomock.Any()).Return(settingsFor("LLMOpenAIChatConfig", "gpt-4o"), nil)
	gomock.InOrder(
		api.EXPECT().ListPlugins(gomock.Any()).Return(pluginsWith(), nil),
		api.EXPECT().ListPlugins(gomock.Any()).Return(pluginsWith("code_assistant"), nil),
	)

	before, err := g.Refresh(context.Background())
	require.NoError(t, err)
	require.Error(t, g.Check(task.Comment))

	after, err := g.RefreshPlugins(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, before, after)
	assert.False(t, before.PluginInstalled, "published snapshots are never mutated")
	assert.True(t, after.PluginInstalled)
	assert.Equal(t, before.ConfiguredModelName, after.ConfiguredModelName)
	assert.NoError(t, g.Check(task.Comment))
}

func TestRefreshLLM_OnlyIsNotEnough(t *testing.T) {
	g, api := newGate(t, session.Connected)
	api.EXPECT().GetLLMSettings(gomock.Any()).Return(settingsFor("LLMOpenAIChatConfig", "gpt-4o"), nil)

	snap, err := g.RefreshLLM(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.ModelChecked)
	assert.False(t, snap.Checked())

	var denied *DeniedError
	require.True(t, errors.As(g.Check(task.Comment), &denied))
	assert.Equal(t, ReasonNotChecked, denied.Reason)
}

func TestCheck_ConcurrentWithRefresh(t *testing.T) {
	g, api := newGate(t, session.Connected)
	api.EXPECT().ListPlugins(gomock.Any()).Return(pluginsWith("code_assistant"), nil).AnyTimes()
	api.EXPECT().GetLLMSettings(gomock.Any()).DoAndReturn(func(context.Context) (*catclient.LLMSettings, error) {
		time.Sleep(time.Millisecond)
		return settingsFor("LLMOpenAIChatConfig", "gpt-4o"), nil
	}).AnyTimes()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range 20 {
			_, _ = g.Refresh(context.Background())
		}
	}()
	go func() {
		defer wg.Done()
		for range 200 {
			snap := g.Snapshot()
			// A published snapshot has both facts or neither.
			assert.Equal(t, snap.PluginChecked, snap.ModelChecked)
		}
	}()
	wg.Wait()
	assert.NoError(t, g.Check(task.Comment))
}
