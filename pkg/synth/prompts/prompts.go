// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

// Package prompts loads localized prompt packs.
//
// A pack holds every piece of text the service sends to the model or shows
// to the user. The pt-BR and en packs are embedded; a YAML file can override
// any subset of fields of the selected locale.
package prompts

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultLocale is the language of the embedded default pack.
const DefaultLocale = "pt-BR"

//go:embed packs/*.yaml
var packs embed.FS

// Messages are user-facing texts.
type Messages struct {
	Banner              string `yaml:"banner"`
	SearchNotConfigured string `yaml:"search_not_configured"`
	SearchError         string `yaml:"search_error"`
	ModelError          string `yaml:"model_error"`
	NoAnswer            string `yaml:"no_answer"`
	InvalidQuestion     string `yaml:"invalid_question"`
	UnknownCapability   string `yaml:"unknown_capability"`
	ParseError          string `yaml:"parse_error"`
	CapabilityError     string `yaml:"capability_error"`
	Thinking            string `yaml:"thinking"`
	InvalidResponse     string `yaml:"invalid_response"`
	ConnectionError     string `yaml:"connection_error"`
}

// Pack is a complete set of prompts for one locale.
type Pack struct {
	Locale         string   `yaml:"locale"`
	Directive      string   `yaml:"directive"`
	PlainDirective string   `yaml:"plain_directive"`
	ContextHeader  string   `yaml:"context_header"`
	FragmentOpen   string   `yaml:"fragment_open"`
	FragmentClose  string   `yaml:"fragment_close"`
	QuestionHeader string   `yaml:"question_header"`
	AnswerHeader   string   `yaml:"answer_header"`
	React          string   `yaml:"react"`
	NoCapabilities string   `yaml:"no_capabilities"`
	Messages       Messages `yaml:"messages"`
}

// Locales lists the embedded locales.
func Locales() []string {
	entries, _ := packs.ReadDir("packs")
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(out)
	return out
}

// Default returns the embedded pt-BR pack.
func Default() *Pack {
	p, err := Load(DefaultLocale, "")
	if err != nil {
		panic(fmt.Sprintf("embedded prompt pack: %v", err))
	}
	return p
}

// Load returns the embedded pack for locale with the fields of the file at
// path, if any, applied on top.
func Load(locale, path string) (*Pack, error) {
	if locale == "" {
		locale = DefaultLocale
	}
	data, err := packs.ReadFile("packs/" + locale + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown prompt locale %q (available: %s)", locale, strings.Join(Locales(), ", "))
	}
	var p Pack
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse prompt pack %s: %w", locale, err)
	}

	if path != "" {
		override, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read prompt pack: %w", err)
		}
		if err := yaml.Unmarshal(override, &p); err != nil {
			return nil, fmt.Errorf("parse prompt pack %s: %w", path, err)
		}
	}

	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Pack) validate() error {
	var missing []string
	for name, v := range map[string]string{
		"directive":                      p.Directive,
		"context_header":                 p.ContextHeader,
		"question_header":                p.QuestionHeader,
		"react":                          p.React,
		"messages.search_not_configured": p.Messages.SearchNotConfigured,
		"messages.search_error":          p.Messages.SearchError,
		"messages.model_error":           p.Messages.ModelError,
		"messages.no_answer":             p.Messages.NoAnswer,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return errors.New("prompt pack missing fields: " + strings.Join(missing, ", "))
	}
	if !strings.Contains(p.React, "{question}") || !strings.Contains(p.React, "{scratchpad}") {
		return errors.New("prompt pack react template needs {question} and {scratchpad}")
	}
	return nil
}

// Render replaces {key} placeholders in tpl. kv alternates keys and values.
func Render(tpl string, kv ...string) string {
	if len(kv) == 0 {
		return tpl
	}
	pairs := make([]string, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		pairs = append(pairs, "{"+kv[i]+"}", kv[i+1])
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}
