// Package script replays tree edits described in a YAML document.
//
// A script lists the roots to register and then the edits to apply, in
// order:
//
//	version: v1.0.0
//	roots:
//	  - {tag: 1, width: 400, height: 800}
//	steps:
//	  - create: {tag: 2, class: View, root: 1, props: {background_color: red}}
//	  - set_children: {tag: 1, children: [2]}
//	  - commit: 1
//
// Property keys are normalized to lowerCamel case.
package script

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/go-drift/viewtree/pkg/props"
)

// SupportedMajor is the script format major version this build replays.
const SupportedMajor = "v1"

// Target receives the edits of a script. *engine.Host implements it.
type Target interface {
	AddRoot(tag, width, height int) error
	RemoveRootView(tag int) error
	CreateView(tag int, class string, rootTag int, p props.Map) error
	UpdateView(tag int, class string, p props.Map) error
	ManageChildren(tag int, moveFrom, moveTo, addChildTags, addAtIndices, removeFrom []int) error
	SetChildren(tag int, childTags []int) error
	ReplaceExistingNonRootView(oldTag, newTag int) error
	RemoveSubviewsFromContainer(tag int) error
	ForceNativeView(tag int) error
	DispatchViewManagerCommand(tag int, command string, args []any) error
	SendAccessibilityEvent(tag, eventType int)
	UpdateNodeSize(tag int, width, height float64)
	DispatchViewUpdates(transactionID int)
}

// Script is a parsed replay document.
type Script struct {
	Version string `yaml:"version"`
	Roots   []Root `yaml:"roots"`
	Steps   []Step `yaml:"steps"`
}

// Root is a root view registered before the first step.
type Root struct {
	Tag    int `yaml:"tag"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Step is one edit. Exactly one field is set.
type Step struct {
	Create         *Create        `yaml:"create,omitempty"`
	Update         *Update        `yaml:"update,omitempty"`
	Manage         *Manage        `yaml:"manage,omitempty"`
	SetChildren    *SetChildren   `yaml:"set_children,omitempty"`
	Replace        *Replace       `yaml:"replace,omitempty"`
	RemoveSubviews *TagRef        `yaml:"remove_subviews,omitempty"`
	ForceNative    *TagRef        `yaml:"force_native,omitempty"`
	Command        *Command       `yaml:"command,omitempty"`
	Accessibility  *Accessibility `yaml:"accessibility,omitempty"`
	UpdateSize     *UpdateSize    `yaml:"update_size,omitempty"`
	Commit         *int           `yaml:"commit,omitempty"`
	RemoveRoot     *int           `yaml:"remove_root,omitempty"`
}

type Create struct {
	Tag   int            `yaml:"tag"`
	Class string         `yaml:"class"`
	Root  int            `yaml:"root"`
	Props map[string]any `yaml:"props"`
}

type Update struct {
	Tag   int            `yaml:"tag"`
	Class string         `yaml:"class"`
	Props map[string]any `yaml:"props"`
}

type Manage struct {
	Tag        int   `yaml:"tag"`
	MoveFrom   []int `yaml:"move_from"`
	MoveTo     []int `yaml:"move_to"`
	AddTags    []int `yaml:"add_tags"`
	AddAt      []int `yaml:"add_at"`
	RemoveFrom []int `yaml:"remove_from"`
}

type SetChildren struct {
	Tag      int   `yaml:"tag"`
	Children []int `yaml:"children"`
}

type Replace struct {
	Old int `yaml:"old"`
	New int `yaml:"new"`
}

type TagRef struct {
	Tag int `yaml:"tag"`
}

type Command struct {
	Tag  int    `yaml:"tag"`
	Name string `yaml:"name"`
	Args []any  `yaml:"args"`
}

type Accessibility struct {
	Tag   int `yaml:"tag"`
	Event int `yaml:"event"`
}

type UpdateSize struct {
	Tag    int     `yaml:"tag"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// Kind returns the name of the edit the step carries, or "" when none or
// several are set.
func (s Step) Kind() string {
	kind := ""
	set := func(ok bool, name string) {
		if !ok {
			return
		}
		if kind != "" {
			kind = "ambiguous"
			return
		}
		kind = name
	}
	set(s.Create != nil, "create")
	set(s.Update != nil, "update")
	set(s.Manage != nil, "manage")
	set(s.SetChildren != nil, "set_children")
	set(s.Replace != nil, "replace")
	set(s.RemoveSubviews != nil, "remove_subviews")
	set(s.ForceNative != nil, "force_native")
	set(s.Command != nil, "command")
	set(s.Accessibility != nil, "accessibility")
	set(s.UpdateSize != nil, "update_size")
	set(s.Commit != nil, "commit")
	set(s.RemoveRoot != nil, "remove_root")
	if kind == "ambiguous" {
		return ""
	}
	return kind
}

// StepError reports the step a replay stopped at.
type StepError struct {
	Index int
	Kind  string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Load reads and parses the script at path.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return Parse(data)
}

// Parse decodes a script and checks its version and step shapes.
func Parse(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	if !semver.IsValid(s.Version) {
		return nil, fmt.Errorf("script version must be a semantic version like v1.0.0 (got %q)", s.Version)
	}
	if semver.Major(s.Version) != SupportedMajor {
		return nil, fmt.Errorf("unsupported script version %s", s.Version)
	}
	for i, step := range s.Steps {
		if step.Kind() == "" {
			return nil, fmt.Errorf("step %d must hold exactly one edit", i)
		}
	}
	return &s, nil
}

// Run registers the roots of s and applies its steps to t. It stops at the
// first failing step or when ctx is done.
func Run(ctx context.Context, t Target, s *Script) error {
	for _, r := range s.Roots {
		if err := t.AddRoot(r.Tag, r.Width, r.Height); err != nil {
			return fmt.Errorf("root %d: %w", r.Tag, err)
		}
	}
	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := apply(t, step); err != nil {
			return &StepError{Index: i, Kind: step.Kind(), Err: err}
		}
	}
	return nil
}

func apply(t Target, step Step) error {
	switch {
	case step.Create != nil:
		c := step.Create
		return t.CreateView(c.Tag, c.Class, c.Root, props.Normalize(c.Props))
	case step.Update != nil:
		u := step.Update
		return t.UpdateView(u.Tag, u.Class, props.Normalize(u.Props))
	case step.Manage != nil:
		m := step.Manage
		return t.ManageChildren(m.Tag, m.MoveFrom, m.MoveTo, m.AddTags, m.AddAt, m.RemoveFrom)
	case step.SetChildren != nil:
		return t.SetChildren(step.SetChildren.Tag, step.SetChildren.Children)
	case step.Replace != nil:
		return t.ReplaceExistingNonRootView(step.Replace.Old, step.Replace.New)
	case step.RemoveSubviews != nil:
		return t.RemoveSubviewsFromContainer(step.RemoveSubviews.Tag)
	case step.ForceNative != nil:
		return t.ForceNativeView(step.ForceNative.Tag)
	case step.Command != nil:
		c := step.Command
		return t.DispatchViewManagerCommand(c.Tag, c.Name, c.Args)
	case step.Accessibility != nil:
		t.SendAccessibilityEvent(step.Accessibility.Tag, step.Accessibility.Event)
	case step.UpdateSize != nil:
		u := step.UpdateSize
		t.UpdateNodeSize(u.Tag, u.Width, u.Height)
	case step.Commit != nil:
		t.DispatchViewUpdates(*step.Commit)
	case step.RemoveRoot != nil:
		return t.RemoveRootView(*step.RemoveRoot)
	}
	return nil
}
