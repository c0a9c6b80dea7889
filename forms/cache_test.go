package forms

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type CacheSuite struct {
	suite.Suite
	dir      string
	host     *recordingHost
	compiler *countingCompiler
	metrics  *Metrics
	cache    *Cache
	base     time.Time
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheSuite))
}

func (s *CacheSuite) SetupTest() {
	s.dir = s.T().TempDir()
	s.host = &recordingHost{rows: 5}
	s.compiler = &countingCompiler{inner: NewYaegiCompiler("", nil)}
	var err error
	s.metrics, err = NewMetrics(prometheus.NewRegistry())
	s.Require().NoError(err)
	s.cache = NewCache(CacheOptions{
		Compiler: s.compiler,
		Host:     s.host,
		Metrics:  s.metrics,
	})
	s.base = time.Now().Add(-time.Hour).Truncate(time.Second)
}

func (s *CacheSuite) write(name, src string, offset time.Duration) string {
	return writeForm(s.T(), s.dir, name, src, s.base.Add(offset))
}

func (s *CacheSuite) TestUnchangedFileIsCompiledOnce() {
	path := s.write("descriptives.go", descriptivesForm, 0)

	first, err := s.cache.Form(path)
	s.Require().NoError(err)
	second, err := s.cache.Form(path)
	s.Require().NoError(err)

	s.Same(first, second)
	s.Equal(1, s.compiler.Calls())
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Compilations))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.CacheHits))
	s.Equal(Stats{Entries: 1, Compilations: 1, Hits: 1}, s.cache.Stats())
}

func (s *CacheSuite) TestChangedFileIsRecompiledAndOldFormRetired() {
	path := s.write("descriptives.go", descriptivesForm, 0)

	old, err := s.cache.Form(path)
	s.Require().NoError(err)

	updated := strings.Replace(descriptivesForm, `return "descriptives"`, `return "descriptives v2"`, 1)
	s.write("descriptives.go", updated, time.Minute)

	fresh, err := s.cache.Form(path)
	s.Require().NoError(err)

	s.NotSame(old, fresh)
	s.Equal("descriptives v2", fresh.Info())
	s.Equal(2, s.compiler.Calls())
	s.Equal(1, s.cache.Len())

	s.True(old.Retired())
	s.False(old.Binding().Attached())
	s.True(fresh.Binding().Attached())
	_, err = old.ParseOptions("{}")
	s.ErrorIs(err, ErrFormRetired)

	s.Equal(1.0, testutil.ToFloat64(s.metrics.Retirements))
}

func (s *CacheSuite) TestMissingFileLeavesCacheEmpty() {
	_, err := s.cache.Form(filepath.Join(s.dir, "absent.go"))

	s.ErrorIs(err, ErrArtifactNotFound)
	s.Equal(0, s.cache.Len())
	s.Equal(0, s.compiler.Calls())
}

func (s *CacheSuite) TestDeletedFileKeepsLastGoodEntry() {
	path := s.write("minimal.go", minimalForm, 0)
	form, err := s.cache.Form(path)
	s.Require().NoError(err)

	s.Require().NoError(os.Remove(path))
	_, err = s.cache.Form(path)
	s.ErrorIs(err, ErrArtifactNotFound)
	s.Equal(1, s.cache.Len())
	s.False(form.Retired())
}

func (s *CacheSuite) TestCompileErrorIsReportedAndNotCached() {
	path := s.write("broken.go", "package main\n\nfunc ParseOptions(s string) string {\n\treturn undefinedName\n}\n", 0)

	_, err := s.cache.Form(path)
	s.Require().Error(err)

	var ce *CompileError
	s.Require().True(errors.As(err, &ce))
	s.Require().NotEmpty(ce.Diagnostics)
	s.Equal(4, ce.Diagnostics[0].Line)

	s.Equal(0, s.cache.Len())
	s.Equal(1.0, testutil.ToFloat64(s.metrics.CompileErrors))
	s.Empty(s.host.Scripts())
}

func (s *CacheSuite) TestFailedRecompileKeepsOldForm() {
	path := s.write("minimal.go", minimalForm, 0)
	old, err := s.cache.Form(path)
	s.Require().NoError(err)

	s.write("minimal.go", "package main\n\nfunc ParseOptions(s string) string {\n", time.Minute)
	_, err = s.cache.Form(path)
	s.ErrorIs(err, ErrCompilation)

	s.Equal(1, s.cache.Len())
	s.False(old.Retired())
	s.True(old.Binding().Attached())
	out, err := old.ParseOptions(`{"a":1}`)
	s.Require().NoError(err)
	s.Equal(`{"a":1}`, out)
}

func (s *CacheSuite) TestExtensionIsAppended() {
	path := s.write("minimal.go", minimalForm, 0)

	form, err := s.cache.Form(strings.TrimSuffix(path, ".go"))
	s.Require().NoError(err)
	s.Equal(path, form.Path())

	again, err := s.cache.Form(path)
	s.Require().NoError(err)
	s.Same(form, again)
}

func (s *CacheSuite) TestClearRetiresEverything() {
	a, err := s.cache.Form(s.write("a.go", minimalForm, 0))
	s.Require().NoError(err)
	b, err := s.cache.Form(s.write("b.go", descriptivesForm, 0))
	s.Require().NoError(err)
	s.Equal(2, s.cache.Len())

	s.cache.Clear()

	s.Equal(0, s.cache.Len())
	s.True(a.Retired())
	s.True(b.Retired())
	s.False(b.Binding().Attached())
	s.Equal(2.0, testutil.ToFloat64(s.metrics.Retirements))

	// a cleared cache compiles again on the next request
	_, err = s.cache.Form(a.Path())
	s.Require().NoError(err)
	s.Equal(3, s.compiler.Calls())
}

func (s *CacheSuite) TestInitRunsOncePerCompilation() {
	path := s.write("descriptives.go", descriptivesForm, 0)

	_, err := s.cache.Form(path)
	s.Require().NoError(err)
	_, err = s.cache.Form(path)
	s.Require().NoError(err)

	s.Equal([]string{"descriptives.go:init"}, s.host.Scripts())
}

// callbackHost runs onScript for every script a form requests.
type callbackHost struct {
	*recordingHost
	onScript func(formPath, script string)
}

func (h *callbackHost) RunScript(formPath, script string) {
	h.recordingHost.RunScript(formPath, script)
	if h.onScript != nil {
		h.onScript(formPath, script)
	}
}

// within fails the test when fn does not return in time.
func (s *CacheSuite) within(d time.Duration, fn func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(d):
		s.FailNow("call did not return")
	}
}

func (s *CacheSuite) callbackCache(onScript func(formPath, script string)) *Cache {
	return NewCache(CacheOptions{
		Compiler: s.compiler,
		Host:     &callbackHost{recordingHost: s.host, onScript: onScript},
		Metrics:  s.metrics,
	})
}

func (s *CacheSuite) TestInitMayRequestOtherForms() {
	a := s.write("a.go", descriptivesForm, 0)
	b := s.write("b.go", minimalForm, 0)

	var cache *Cache
	var nested *Form
	var selfErr, nestedErr error
	cache = s.callbackCache(func(formPath, _ string) {
		if formPath != a {
			return
		}
		_, selfErr = cache.Form(a)
		nested, nestedErr = cache.Form(b)
	})

	var form *Form
	var err error
	s.within(30*time.Second, func() { form, err = cache.Form(a) })

	s.Require().NoError(err)
	s.Equal("descriptives", form.Info())
	s.ErrorIs(selfErr, ErrCompileInProgress)
	s.Require().NoError(nestedErr)
	out, err := nested.ParseOptions(`{"b":2}`)
	s.Require().NoError(err)
	s.Equal(`{"b":2}`, out)
	s.Equal(2, cache.Len())

	// the in-progress mark is gone once compilation finished
	again, err := cache.Form(a)
	s.Require().NoError(err)
	s.Same(form, again)
}

func (s *CacheSuite) TestClearDuringCompileDiscardsForm() {
	path := s.write("descriptives.go", descriptivesForm, 0)
	var cache *Cache
	cache = s.callbackCache(func(string, string) { cache.Clear() })

	var err error
	s.within(30*time.Second, func() { _, err = cache.Form(path) })

	s.ErrorIs(err, ErrFormRetired)
	s.Equal(0, cache.Len())
}

const replacingForm = `package main

import "statbridge/host"

func ParseOptions(options string) string {
	host.RunScript("parse")
	return options
}
`

func (s *CacheSuite) TestParseOptionsMayTriggerOwnReplacement() {
	path := s.write("replacing.go", replacingForm, 0)
	var cache *Cache
	var fresh *Form
	var freshErr error
	cache = s.callbackCache(func(_, script string) {
		if script != "parse" || fresh != nil {
			return
		}
		s.write("replacing.go", minimalForm, time.Minute)
		fresh, freshErr = cache.Form(path)
	})

	old, err := cache.Form(path)
	s.Require().NoError(err)

	var out string
	s.within(30*time.Second, func() { out, err = old.ParseOptions(`{"a":1}`) })

	s.Require().NoError(err)
	s.Equal(`{"a":1}`, out)
	s.Require().NoError(freshErr)
	s.NotSame(old, fresh)
	s.True(old.Retired())

	_, err = old.ParseOptions("{}")
	s.ErrorIs(err, ErrFormRetired)
}

func TestMetricsShareRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewMetrics(reg)
	require.NoError(t, err)
	b, err := NewMetrics(reg)
	require.NoError(t, err)

	a.Compilations.Inc()
	b.Compilations.Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(b.Compilations))
}

func TestMetricsRegistrationConflict(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "statbridge_form_compilations_total",
		Help: "Something else entirely.",
	}))

	var m *Metrics
	var err error
	require.NotPanics(t, func() { m, err = NewMetrics(reg) })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statbridge_form_compilations_total")

	m.Compilations.Inc()
	m.CacheHits.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Compilations))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits))

	cache := NewCache(CacheOptions{Metrics: m})
	assert.Zero(t, cache.Len())
}
