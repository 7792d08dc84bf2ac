//go:build integration

package browser_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"manifestfill/internal/browser"
	"manifestfill/internal/confirm"
	"manifestfill/internal/driver"
	"manifestfill/internal/manifest"
	"manifestfill/internal/resolver"
)

// entryPage mimics the documentation page: a modal entry form with two
// jQuery-UI style autocompletes and a submit that closes the modal.
const entryPage = `<!doctype html>
<html><body>
<button data-target="#CreateCaratulaModal" onclick="openModal()">Agregar</button>
<ul id="created"></ul>
<div id="CreateCaratulaModal" style="display:none">
  <form id="f" onsubmit="return create(event)">
    <input id="IdentificadorViaje">
    <input id="IdentificadorTituloMadre">
    <input id="Buque">
    <input id="CodigoPaisLugarOrigen" data-source="country">
    <input id="LugarOrigen">
    <input id="CodigoPuertoEmbarque" data-source="port">
    <input id="FechaEmbarque">
    <input class="btn btn-primary" type="submit" value="Crear">
  </form>
</div>
<ul class="ui-autocomplete" style="display:none"></ul>
<script>
const sources = {
  country: ["ARGELIA", "ARGENTINA", "701"],
  port: ["ARBUE - BUENOS AIRES", "ARROS - ROSARIO", "OTROS"],
};
const list = document.querySelector("ul.ui-autocomplete");
let active = null;
function openModal() {
  document.getElementById("f").reset();
  setTimeout(() => { document.getElementById("CreateCaratulaModal").style.display = "block"; }, 100);
}
function create(ev) {
  ev.preventDefault();
  const li = document.createElement("li");
  li.textContent = document.getElementById("IdentificadorViaje").value + "|" +
    document.getElementById("CodigoPaisLugarOrigen").value + "|" +
    document.getElementById("CodigoPuertoEmbarque").value;
  document.getElementById("created").appendChild(li);
  document.getElementById("CreateCaratulaModal").style.display = "none";
  return false;
}
document.querySelectorAll("input[data-source]").forEach((input) => {
  input.addEventListener("input", () => {
    active = input;
    const q = input.value.toUpperCase();
    list.innerHTML = "";
    if (!q) { list.style.display = "none"; return; }
    const all = sources[input.dataset.source];
    let labels = all.filter((l) => l.includes(q));
    if (!labels.length) labels = all.filter((l) => l === "OTROS");
    for (const label of labels) {
      const li = document.createElement("li");
      li.textContent = label;
      li.addEventListener("click", () => { active.value = label; list.style.display = "none"; });
      list.appendChild(li);
    }
    list.style.display = list.children.length ? "block" : "none";
  });
});
</script>
</body></html>`

func TestPage_RegistersRecords_Integration(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, entryPage)
	}))
	defer ts.Close()

	logger := zaptest.NewLogger(t)
	cfg := browser.DefaultConfig()
	cfg.Headless = true
	cfg.ReuseTab = false
	cfg.TypeDelayMs = 0

	s := browser.NewSession(cfg, logger)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	defer func() {
		if err := s.Shutdown(); err != nil {
			t.Logf("Shutdown error: %v", err)
		}
	}()

	require.NoError(t, s.Start(ctx), "Failed to start browser")
	rp, err := s.OpenPage(ctx, ts.URL)
	require.NoError(t, err)

	page := browser.NewPage(rp, browser.DefaultSelectors(), cfg, logger)
	require.NoError(t, page.WaitReady(ctx, 10*time.Second))

	d := driver.New(driver.DefaultConfig(), page.Form(),
		resolver.New(resolver.DefaultConfig(), logger),
		confirm.New(confirm.DefaultConfig(), logger),
		logger, driver.WithSnapshotter(page))

	records := []manifest.Record{
		{Row: 2, TripID: "A1", ParentTitle: "T1", Vessel: "V", Place: "BUENOS AIRES", Date: "01/02/2025", PortCode: "ARBUE", Country: "ARGENTINA"},
		{Row: 3, TripID: "B2", ParentTitle: "T2", Vessel: "V", Date: "01/02/2025", PortCode: "ZZZZZ"},
	}
	outs, err := d.Run(ctx, records)
	require.NoError(t, err)
	require.Len(t, outs, 2)
	for _, o := range outs {
		assert.True(t, o.OK(), o.Reason)
	}

	created, err := rp.Context(ctx).Elements("#created li")
	require.NoError(t, err)
	require.Len(t, created, 2)
	first, err := created[0].Text()
	require.NoError(t, err)
	assert.Equal(t, "A1|ARGENTINA|ARBUE - BUENOS AIRES", first)
	second, err := created[1].Text()
	require.NoError(t, err)
	assert.Equal(t, "B2|701|OTROS", second)
}

func TestSession_ReusesOpenTab_Integration(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><h1>Hello World</h1></body></html>")
	}))
	defer ts.Close()

	cfg := browser.DefaultConfig()
	cfg.Headless = true
	s := browser.NewSession(cfg, zaptest.NewLogger(t))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	defer func() { _ = s.Shutdown() }()

	require.NoError(t, s.Start(ctx))
	require.NotEmpty(t, s.ControlURL())

	first, err := s.OpenPage(ctx, ts.URL)
	require.NoError(t, err)
	second, err := s.OpenPage(ctx, ts.URL)
	require.NoError(t, err)
	assert.Equal(t, first.TargetID, second.TargetID)
}

func TestControl_ClickThroughOverlay_Integration(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<!doctype html><html><body>
<button id="b" onclick="document.body.dataset.clicked='yes'">Agregar</button>
<div style="position:fixed;inset:0;z-index:10;background:rgba(0,0,0,.3)"></div>
</body></html>`)
	}))
	defer ts.Close()

	logger := zaptest.NewLogger(t)
	cfg := browser.DefaultConfig()
	cfg.Headless = true
	cfg.ReuseTab = false
	cfg.ActionTimeoutMs = 2000

	s := browser.NewSession(cfg, logger)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	defer func() { _ = s.Shutdown() }()

	require.NoError(t, s.Start(ctx))
	rp, err := s.OpenPage(ctx, ts.URL)
	require.NoError(t, err)

	sel := browser.DefaultSelectors()
	sel.OpenTrigger = "#b"
	page := browser.NewPage(rp, sel, cfg, logger)

	start := time.Now()
	require.NoError(t, page.Form().Open.Click(ctx))
	assert.Less(t, time.Since(start), 2*time.Second, "covered click should not wait out the action timeout")

	res, err := rp.Context(ctx).Eval(`() => document.body.dataset.clicked || ""`)
	require.NoError(t, err)
	assert.Equal(t, "yes", res.Value.Str())
}

func TestSession_ShutdownAfterCancel_Integration(t *testing.T) {
	cfg := browser.DefaultConfig()
	cfg.Headless = true
	s := browser.NewSession(cfg, zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	require.NoError(t, s.Start(ctx))
	cancel()

	require.NoError(t, s.Shutdown())
	assert.Empty(t, s.ControlURL())
}
