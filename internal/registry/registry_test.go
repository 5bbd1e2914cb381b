package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/workdatahub/workdatahub/internal/pipeline"
	"github.com/workdatahub/workdatahub/internal/validation"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type stubService struct{}

func (stubService) Bronze() *validation.BronzeSchema { return nil }
func (stubService) RowIn() validation.RowValidator   { return nil }
func (stubService) Steps(StepDeps) []pipeline.Step   { return nil }
func (stubService) Gold() *validation.GoldSchema     { return nil }

type stubConfigured []string

func (s stubConfigured) Names() []string { return s }

func TestJobRegistry_DuplicateRejected(t *testing.T) {
	r := NewJobRegistry()
	require.NoError(t, r.Register("d", JobSpec{SingleFile: true}))

	err := r.Register("d", JobSpec{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestJobRegistry_Names(t *testing.T) {
	r := NewJobRegistry()
	require.NoError(t, r.Register("b", JobSpec{}))
	require.NoError(t, r.Register("a", JobSpec{}))
	assert.Equal(t, []string{"a", "b"}, r.Names())
}

func TestServiceRegistry_Get(t *testing.T) {
	r := NewServiceRegistry()
	require.NoError(t, r.Register("d", Entry{DisplayName: "Domain D", Service: stubService{}}))

	e, ok := r.Get("d")
	require.True(t, ok)
	assert.Equal(t, "Domain D", e.DisplayName)

	_, ok = r.Get("ghost")
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	jobs := NewJobRegistry()
	services := NewServiceRegistry()
	require.NoError(t, jobs.Register("d", JobSpec{SingleFile: true}))
	require.NoError(t, services.Register("d", Entry{Service: stubService{}}))

	assert.NoError(t, Validate(stubConfigured{"d"}, jobs, services))
}

func TestValidate_ConfiguredButUnregistered(t *testing.T) {
	err := Validate(stubConfigured{"ghost"}, NewJobRegistry(), NewServiceRegistry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestValidate_MissingService(t *testing.T) {
	jobs := NewJobRegistry()
	require.NoError(t, jobs.Register("d", JobSpec{}))

	err := Validate(stubConfigured{"d"}, jobs, NewServiceRegistry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no registered service")
}

func TestValidate_ExtraRegistrationIsWarningOnly(t *testing.T) {
	jobs := NewJobRegistry()
	services := NewServiceRegistry()
	require.NoError(t, jobs.Register("extra", JobSpec{}))
	require.NoError(t, services.Register("extra", Entry{Service: stubService{}}))

	assert.NoError(t, Validate(stubConfigured{}, jobs, services))
}
