// Package audit answers whether a wiki endpoint is allow-listed or block-listed.
package audit

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Membership is the audit state of one API endpoint.
type Membership struct {
	Allow bool
	Block bool
}

// Auditor looks up the membership of an API endpoint.
type Auditor interface {
	Lookup(api string) Membership
}

// None is an Auditor for which no endpoint is listed.
type None struct{}

// Lookup always reports no membership.
func (None) Lookup(string) Membership { return Membership{} }

// file is the on-disk shape of an audit list.
type file struct {
	Allow []string `yaml:"allow"`
	Block []string `yaml:"block"`
}

// List is an in-memory allow/block list keyed by exact API URL.
type List struct {
	mu    sync.RWMutex
	allow map[string]struct{}
	block map[string]struct{}
}

// NewList builds a list from explicit endpoint slices.
func NewList(allow, block []string) *List {
	l := &List{}
	l.set(allow, block)
	return l
}

// Parse reads a YAML document of the form
//
//	allow:
//	  - https://wiki.example/api.php
//	block:
//	  - https://spam.example/w/api.php
func Parse(data []byte) (*List, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse audit list: %w", err)
	}
	return NewList(f.Allow, f.Block), nil
}

// Load reads an audit list from path.
func Load(path string) (*List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read audit list: %w", err)
	}
	return Parse(data)
}

// Lookup reports whether api is on either list.
func (l *List) Lookup(api string) Membership {
	api = strings.TrimSpace(api)

	l.mu.RLock()
	defer l.mu.RUnlock()
	_, allow := l.allow[api]
	_, block := l.block[api]
	return Membership{Allow: allow, Block: block}
}

// Allow adds api to the allow list.
func (l *List) Allow(api string) {
	l.mu.Lock()
	l.allow[strings.TrimSpace(api)] = struct{}{}
	l.mu.Unlock()
}

// Block adds api to the block list.
func (l *List) Block(api string) {
	l.mu.Lock()
	l.block[strings.TrimSpace(api)] = struct{}{}
	l.mu.Unlock()
}

// Marshal renders the list back to YAML, sorted for stable output.
func (l *List) Marshal() ([]byte, error) {
	l.mu.RLock()
	f := file{Allow: sortedKeys(l.allow), Block: sortedKeys(l.block)}
	l.mu.RUnlock()
	return yaml.Marshal(f)
}

func (l *List) set(allow, block []string) {
	l.allow = toSet(allow)
	l.block = toSet(block)
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out[it] = struct{}{}
		}
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
