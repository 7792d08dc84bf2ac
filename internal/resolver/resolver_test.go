package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manifestfill/internal/form"
	"manifestfill/internal/form/formtest"
	"manifestfill/internal/manifest"
)

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.ListSettle = time.Millisecond
	cfg.ListWait = 5 * time.Millisecond
	cfg.PollInterval = time.Millisecond
	cfg.FallbackSettle = 0
	return cfg
}

func newTarget(labels ...string) (*formtest.Page, form.Target) {
	p := formtest.NewPage()
	target := p.Target("field")
	p.List("field").SetLabels(labels...)
	return p, target
}

func TestResolve_EmptyQueryIsNoop(t *testing.T) {
	p, target := newTarget("ARGENTINA")
	r := New(fastConfig(), nil)

	res, err := r.Resolve(context.Background(), "country", target, "   ", PolicyExact)

	require.NoError(t, err)
	assert.Equal(t, ModeSkipped, res.Mode)
	assert.Empty(t, p.Log(), "control must not be touched")
}

func TestResolve_TypesBeforeMatching(t *testing.T) {
	p, target := newTarget("ARGENTINA")
	r := New(fastConfig(), nil)

	_, err := r.Resolve(context.Background(), "country", target, "Argentina", PolicyExact)
	require.NoError(t, err)

	assert.Equal(t, []string{"field.click", "field.clear", "field.type:Argentina", "field.pick:ARGENTINA"}, p.Log())
}

func TestResolve_ExactPreferredOverPrefixCandidates(t *testing.T) {
	// "BRASIL (SUR)" shares the prefix and is listed first; exact mode must
	// still choose the exact label.
	p, target := newTarget("BRASIL (SUR)", "  brasil  ", "BRASILIA")
	r := New(fastConfig(), nil)

	res, err := r.Resolve(context.Background(), "country", target, "Brasil", PolicyExact)

	require.NoError(t, err)
	assert.Equal(t, ModeExact, res.Mode)
	assert.Equal(t, "  brasil  ", res.Label)
	assert.Equal(t, []string{"field.pick:  brasil  "}, p.Filter("field.pick"))
}

func TestResolve_ExactNormalizesWhitespace(t *testing.T) {
	_, target := newTarget("ESTADOS   UNIDOS")
	res, err := New(fastConfig(), nil).Resolve(context.Background(), "country", target, " estados unidos ", PolicyExact)
	require.NoError(t, err)
	assert.Equal(t, ModeExact, res.Mode)
}

func TestResolve_PrefixPicksFirstInDisplayOrder(t *testing.T) {
	p, target := newTarget("CLSAI - SAN ANTONIO", "ARBUE - BUENOS AIRES", "ARBUE2 - BUENOS AIRES SUR")
	r := New(fastConfig(), nil)

	res, err := r.Resolve(context.Background(), "port_code", target, "arbue", PolicyPrefix)

	require.NoError(t, err)
	assert.Equal(t, ModePrefix, res.Mode)
	assert.Equal(t, "ARBUE", res.Query)
	assert.Equal(t, "ARBUE - BUENOS AIRES", res.Label)
	assert.Equal(t, []string{"field.type:ARBUE"}, p.Filter("field.type"))
}

func TestResolve_SentinelFallsBackToOtherEntry(t *testing.T) {
	p, target := newTarget("ZW001 - HARARE", "999 - Otros puertos", "ZA001 - DURBAN")
	r := New(fastConfig(), nil)

	res, err := r.Resolve(context.Background(), "port_code", target, "ZZZZZ", PolicyPrefix)

	require.NoError(t, err)
	assert.Equal(t, ModeSentinel, res.Mode)
	assert.Equal(t, "999 - Otros puertos", res.Label)
	assert.Empty(t, p.Filter("field.press"))
}

func TestResolve_SentinelPrefersRealPrefixMatch(t *testing.T) {
	_, target := newTarget("OTROS", "ZZZZZ - DESCONOCIDO")
	res, err := New(fastConfig(), nil).Resolve(context.Background(), "port_code", target, "ZZZZZ", PolicyPrefix)
	require.NoError(t, err)
	assert.Equal(t, ModePrefix, res.Mode)
	assert.Equal(t, "ZZZZZ - DESCONOCIDO", res.Label)
}

func TestResolve_NonSentinelDoesNotUseOtherEntry(t *testing.T) {
	p, target := newTarget("OTHER PORTS")
	res, err := New(fastConfig(), nil).Resolve(context.Background(), "port_code", target, "ARBUE", PolicyPrefix)
	require.NoError(t, err)
	assert.Equal(t, ModeLastResort, res.Mode)
	assert.Empty(t, p.Filter("field.pick"))
}

func TestResolve_EmptyListUsesLastResort(t *testing.T) {
	p, target := newTarget()
	r := New(fastConfig(), nil)

	res, err := r.Resolve(context.Background(), "country", target, "Narnia", PolicyExact)

	require.NoError(t, err)
	assert.Equal(t, ModeLastResort, res.Mode)
	assert.Equal(t, []string{"field.press:ArrowDown", "field.press:Enter"}, p.Filter("field.press"))
}

func TestResolve_ProbeErrorTreatedAsNoMatch(t *testing.T) {
	p, target := newTarget("ARGENTINA")
	p.List("field").SetErr(errors.New("node detached"))

	res, err := New(fastConfig(), nil).Resolve(context.Background(), "country", target, "ARGENTINA", PolicyExact)

	require.NoError(t, err)
	assert.Equal(t, ModeLastResort, res.Mode)
}

func TestResolve_TypeErrorIsReturned(t *testing.T) {
	p, target := newTarget("ARGENTINA")
	p.Control("field").Errs["type"] = errors.New("not interactable")

	_, err := New(fastConfig(), nil).Resolve(context.Background(), "country", target, "ARGENTINA", PolicyExact)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "country")
	assert.Empty(t, p.Filter("field.pick"))
}

func TestResolve_Cancelled(t *testing.T) {
	_, target := newTarget("ARGENTINA")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := fastConfig()
	cfg.ListSettle = time.Second

	_, err := New(cfg, nil).Resolve(ctx, "country", target, "ARGENTINA", PolicyExact)
	require.ErrorIs(t, err, context.Canceled)
}

func TestMatchers(t *testing.T) {
	list := []form.Suggestion{
		form.NewSuggestion("Argentina", 0, nil),
		form.NewSuggestion("ARGELIA", 1, nil),
	}
	_, ok := matchExact(list, "ARGE")
	assert.False(t, ok)

	s, ok := matchPrefix(list, "arge")
	require.True(t, ok)
	assert.Equal(t, 0, s.Index)

	_, ok = matchToken(list, []string{"", "OTROS"})
	assert.False(t, ok)
}

func TestSentinelsFromConfig(t *testing.T) {
	cfg := fastConfig()
	cfg.Sentinels = manifest.Sentinels{UnknownCode: "XXXXX", OtherTokens: []string{"VARIOS"}}
	_, target := newTarget("VARIOS")
	res, err := New(cfg, nil).Resolve(context.Background(), "port_code", target, "xxxxx", PolicyPrefix)
	require.NoError(t, err)
	assert.Equal(t, ModeSentinel, res.Mode)
}
