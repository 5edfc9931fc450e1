package testutils

import (
	"testing"

	"github.com/UTNuclearRobotics/skiros2/pkg/skill"
	"github.com/stretchr/testify/require"
)

// LibraryYAML declares the skills shared by tests across packages.
const LibraryYAML = `
skills:
  - type: Move
    behavior: wait
    options: {ticks: 2}
    params: {target: home, ticks: 2}
  - type: Grasp
    behavior: wait
    options: {ticks: 2}
    params: {object: cup}
    cost: 2
  - type: Noop
    behavior: noop
  - type: Fail
    behavior: fail
    options: {message: unreachable}
  - type: Boom
    behavior: error
    options: {message: motor fault}
  - type: Set
    behavior: set
    params: {key: "", value: null}
  - type: Check
    behavior: check
    params: {key: "", value: null}
  - type: Hang
    behavior: hang
  - type: Sequence
    composition: sequential
  - type: Fallback
    composition: selector
  - type: Parallel
    composition: parallelff
  - type: Race
    composition: parallelfs
  - type: Try
    composition: nofail
`

// NewLibrary returns a library loaded with LibraryYAML.
// It fails the test immediately on error.
func NewLibrary(t testing.TB) *skill.Library {
	t.Helper()

	defs, err := skill.Parse([]byte(LibraryYAML))
	require.NoError(t, err, "Failed to parse test library")

	lib := skill.NewLibrary()
	require.NoError(t, lib.Define(defs...), "Failed to define test library")
	return lib
}
