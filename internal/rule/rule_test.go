package rule_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiln-build/kiln/internal/action"
	"github.com/kiln-build/kiln/internal/manifest"
	"github.com/kiln-build/kiln/internal/pool"
	"github.com/kiln-build/kiln/internal/rule"
	"github.com/kiln-build/kiln/internal/scope"
	"github.com/kiln-build/kiln/internal/target"
	"github.com/kiln-build/kiln/internal/vars"
)

// miniDriver recursively drives match/apply/run for whatever prerequisite
// chain a recipe asks it to execute, the same three-step protocol the real
// dependency executor performs, just without its concurrency/caching
// machinery — enough to exercise a rule's recipe end to end.
type miniDriver struct {
	base *scope.Scope
}

func (d miniDriver) Execute(t *target.Target, a uint32) (target.State, error) {
	r, md, err := rule.Match(t.BaseScope, action.ID(a), t, "")
	if err != nil {
		return target.StateFailed, err
	}
	recipe, err := rule.Apply(r, action.ID(a), t, md)
	if err != nil {
		return target.StateFailed, err
	}
	s, err := recipe.Run(t, a, d)
	if err != nil {
		return s, err
	}
	t.SetState(s)
	return s, nil
}

func newFixture() (*pool.Pool, *scope.Tree, *scope.Scope) {
	p := pool.New()
	tree := scope.New(p)
	root := tree.Insert("/out", true)
	return p, tree, root
}

// S1: a chain of fsdir targets, parent before child, materializes every
// directory in the chain and reports Changed.
func TestScenario_FsdirChainCreatesDirectories(t *testing.T) {
	tmp := t.TempDir()
	p, _, root := newFixture()

	rule.Register(root, action.OpUpdate, "fsdir", "", "fsdir_rule", rule.FsdirRule{})
	rule.Register(root, action.OpDefault, "fsdir", "", "fsdir_rule", rule.FsdirRule{})
	rule.Register(root, action.OpClean, "fsdir", "", "fsdir_rule", rule.FsdirRule{})

	fsdirType := target.NewType("fsdir", nil)
	set := target.NewSet()

	parentBase := p.InternDir(tmp)
	childBase := p.InternDir(filepath.Join(tmp, "parent"))

	parent, _ := set.Insert(fsdirType, parentBase, parentBase, "parent", func(nt *target.Target) {
		nt.BaseScope = root
	})
	child, _ := set.Insert(fsdirType, childBase, childBase, "child", func(nt *target.Target) {
		nt.BaseScope = root
	})
	child.SetPrerequisiteTargets([]*target.Target{parent})

	drv := miniDriver{base: root}
	a := action.Pack(action.MetaPerform, action.OpUpdate, 0)
	s, err := drv.Execute(child, uint32(a))
	require.NoError(t, err)
	assert.Equal(t, target.StateChanged, s)

	_, err = os.Stat(filepath.Join(tmp, "parent", "child"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(tmp, "parent"))
	assert.NoError(t, err)
}

// S1 continued: a second update pass over the same chain reports
// Unchanged (both directories already exist), and clean removes both in
// reverse order (child before parent).
func TestScenario_FsdirChainSecondUpdateUnchangedThenCleanRemovesInReverse(t *testing.T) {
	tmp := t.TempDir()
	p, _, root := newFixture()

	rule.Register(root, action.OpUpdate, "fsdir", "", "fsdir_rule", rule.FsdirRule{})
	rule.Register(root, action.OpDefault, "fsdir", "", "fsdir_rule", rule.FsdirRule{})
	rule.Register(root, action.OpClean, "fsdir", "", "fsdir_rule", rule.FsdirRule{})

	fsdirType := target.NewType("fsdir", nil)
	set := target.NewSet()

	parentBase := p.InternDir(tmp)
	childBase := p.InternDir(filepath.Join(tmp, "parent"))

	parent, _ := set.Insert(fsdirType, parentBase, parentBase, "parent", func(nt *target.Target) {
		nt.BaseScope = root
	})
	child, _ := set.Insert(fsdirType, childBase, childBase, "child", func(nt *target.Target) {
		nt.BaseScope = root
	})
	child.SetPrerequisiteTargets([]*target.Target{parent})

	drv := miniDriver{base: root}
	updateAct := action.Pack(action.MetaPerform, action.OpUpdate, 0)

	s, err := drv.Execute(child, uint32(updateAct))
	require.NoError(t, err)
	require.Equal(t, target.StateChanged, s)

	// A second update pass sees both directories already present.
	s, err = drv.Execute(child, uint32(updateAct))
	require.NoError(t, err)
	assert.Equal(t, target.StateUnchanged, s)

	cleanAct := action.Pack(action.MetaPerform, action.OpClean, 0)
	s, err = drv.Execute(child, uint32(cleanAct))
	require.NoError(t, err)
	assert.Equal(t, target.StateChanged, s)

	_, err = os.Stat(filepath.Join(tmp, "parent", "child"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(tmp, "parent"))
	assert.True(t, os.IsNotExist(err))
}

// S1 continued: if an ancestor directory is left non-empty by something
// outside the tracked chain, its clean recipe reports Postponed instead
// of removing it, and that Postponed state survives up through a
// forwarding dir_rule ancestor rather than being reported as
// Unchanged/Changed.
func TestScenario_FsdirCleanPostponedOnNonEmptyDirPropagatesThroughForwardingAncestor(t *testing.T) {
	tmp := t.TempDir()
	p, _, root := newFixture()

	rule.Register(root, action.OpUpdate, "fsdir", "", "fsdir_rule", rule.FsdirRule{})
	rule.Register(root, action.OpDefault, "fsdir", "", "fsdir_rule", rule.FsdirRule{})
	rule.Register(root, action.OpClean, "fsdir", "", "fsdir_rule", rule.FsdirRule{})
	rule.Register(root, action.OpClean, "dir", "", "dir_rule", rule.DirRule{})

	fsdirType := target.NewType("fsdir", nil)
	dirType := target.NewType("dir", nil)
	set := target.NewSet()

	parentBase := p.InternDir(tmp)
	childBase := p.InternDir(filepath.Join(tmp, "parent"))

	parent, _ := set.Insert(fsdirType, parentBase, parentBase, "parent", func(nt *target.Target) {
		nt.BaseScope = root
	})
	child, _ := set.Insert(fsdirType, childBase, childBase, "child", func(nt *target.Target) {
		nt.BaseScope = root
	})
	child.SetPrerequisiteTargets([]*target.Target{parent})

	group := &target.Target{Type: dirType, Dir: parentBase, Out: parentBase, Name: "group", BaseScope: root}
	group.SetPrerequisiteTargets([]*target.Target{child})

	drv := miniDriver{base: root}
	updateAct := action.Pack(action.MetaPerform, action.OpUpdate, 0)
	_, err := drv.Execute(child, uint32(updateAct))
	require.NoError(t, err)

	// Something outside the tracked chain leaves "parent" non-empty once
	// "child" itself has been removed.
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "parent", "stray"), []byte("x"), 0o644))

	cleanAct := action.Pack(action.MetaPerform, action.OpClean, 0)
	s, err := drv.Execute(group, uint32(cleanAct))
	require.NoError(t, err)
	assert.Equal(t, target.StatePostponed, s)

	_, err = os.Stat(filepath.Join(tmp, "parent", "child"))
	assert.True(t, os.IsNotExist(err), "child directory should still have been removed")
	_, err = os.Stat(filepath.Join(tmp, "parent"))
	assert.NoError(t, err, "parent should survive since it is non-empty")
}

// S2: two non-fallback rules both claiming the same (operation, type) is an
// ambiguous match.
func TestScenario_AmbiguousMatchWhenTwoRulesClaim(t *testing.T) {
	_, _, root := newFixture()

	always := rule.FuncRule{
		MatchFn: func(a action.ID, t *target.Target, hint string) (rule.MatchData, bool) { return nil, true },
		ApplyFn: func(a action.ID, t *target.Target, md rule.MatchData) (target.Recipe, error) { return target.Noop, nil },
	}
	rule.Register(root, action.OpUpdate, "file", "", "rule_a", always)
	rule.Register(root, action.OpUpdate, "file", "", "rule_b", always)

	fileType := target.NewType("file", nil)
	tg := &target.Target{Type: fileType, Name: "x", BaseScope: root}

	_, _, err := rule.Match(root, action.Pack(action.MetaPerform, action.OpUpdate, 0), tg, "")
	require.Error(t, err)
	var amb *rule.AmbiguousMatchError
	require.ErrorAs(t, err, &amb)
	assert.ElementsMatch(t, []string{"rule_a", "rule_b"}, amb.Names)
}

// S3: path_rule is a declared fallback, so an explicit competing rule wins
// the tie-break instead of producing an ambiguous match.
func TestScenario_ExplicitRuleWinsOverFallbackPathRule(t *testing.T) {
	tmp := t.TempDir()
	p, _, root := newFixture()

	explicitApplied := false
	explicit := rule.FuncRule{
		MatchFn: func(a action.ID, t *target.Target, hint string) (rule.MatchData, bool) { return nil, true },
		ApplyFn: func(a action.ID, t *target.Target, md rule.MatchData) (target.Recipe, error) {
			explicitApplied = true
			return target.Noop, nil
		},
	}
	rule.Register(root, action.OpUpdate, "file", "", "explicit_rule", explicit)
	rule.Register(root, action.OpUpdate, "file", "", "path_rule", rule.PathRule{})

	fileType := target.NewType("file", nil)
	dir := p.InternDir(tmp)

	path := filepath.Join(tmp, "present")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	tg := &target.Target{Type: fileType, Dir: dir, Name: "present", BaseScope: root}

	a := action.Pack(action.MetaPerform, action.OpUpdate, 0)
	r, md, err := rule.Match(root, a, tg, "")
	require.NoError(t, err)
	_, err = rule.Apply(r, a, tg, md)
	require.NoError(t, err)
	assert.True(t, explicitApplied)
}

// When only the fallback is registered, it alone matching is not an
// ambiguity — it is the sole claimant.
func TestScenario_PathRuleAloneMatchesWithoutAmbiguity(t *testing.T) {
	tmp := t.TempDir()
	p, _, root := newFixture()

	rule.Register(root, action.OpUpdate, "file", "", "path_rule", rule.PathRule{})

	fileType := target.NewType("file", nil)
	dir := p.InternDir(tmp)
	path := filepath.Join(tmp, "present")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	tg := &target.Target{Type: fileType, Dir: dir, Name: "present", BaseScope: root}
	a := action.Pack(action.MetaPerform, action.OpUpdate, 0)
	r, _, err := rule.Match(root, a, tg, "")
	require.NoError(t, err)
	assert.NotNil(t, r)
}

// install_rule copies a target's file into the destination named by
// install.destdir and appends one record to the manifest under out_root,
// regardless of whether the file itself changed this run.
func TestScenario_InstallRuleCopiesFileAndAppendsManifestRecord(t *testing.T) {
	tmp := t.TempDir()
	p, tree, _ := newFixture()
	real := tree.Insert(tmp, true)

	dest := filepath.Join(tmp, "stage")
	real.Assign("install.destdir", vars.DirPath(dest), &scope.Decl{Kind: vars.KindAbsDirPath, Visibility: vars.VisibilityProject})

	rule.Register(real, action.OpInstall, "file", "", "install_rule", rule.InstallRule{})

	srcDir := p.InternDir(tmp)
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "hello.txt"), []byte("hi"), 0o644))

	fileType := target.NewType("file", nil)
	tg := &target.Target{Type: fileType, Dir: srcDir, Name: "hello.txt", BaseScope: real}

	a := action.Pack(action.MetaPerform, action.OpInstall, 0)
	drv := miniDriver{base: real}
	state, err := drv.Execute(tg, uint32(a))
	require.NoError(t, err)
	assert.Equal(t, target.StateChanged, state)

	installed, err := os.ReadFile(filepath.Join(dest, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(installed))

	records, err := manifest.ReadAll(filepath.Join(tmp, ".kiln", "install-manifest.jsonl"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, filepath.Join(dest, "hello.txt"), records[0].Destination)
}

func TestDetectRuleCycles_FindsSelfLoopAndSCC(t *testing.T) {
	g := rule.NewGraph()
	g.AddEdge("solo", "solo")
	g.AddEdge("a", "b")
	g.AddEdge("b", "a")
	g.AddEdge("isolated", "sink")

	cycles := rule.DetectRuleCycles(g)
	assert.Len(t, cycles, 2)
}
