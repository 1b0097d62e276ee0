// Copyright 2020-2024 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rangeeval

import (
	"strings"
	"sync"

	"github.com/ytoolshed/crange/private/rangepkg/rangecompress"
	"github.com/ytoolshed/crange/private/rangepkg/rangeset"
)

// Warning is a warning of a Request.
type Warning struct {
	// Type is the warning type, such as NOCLUSTER, or empty for free-form warnings.
	Type string
	// Names are the names that caused a typed warning.
	Names []string
	// Message is the text of a free-form warning.
	Message string
}

// String returns the warning as it appears in Warnings.String.
func (w Warning) String() string {
	if w.Type == "" {
		return w.Message
	}
	compressed, err := rangecompress.Compress(w.Names, rangecompress.DefaultSeparator)
	if err != nil {
		compressed = strings.Join(w.Names, ",")
	}
	return w.Type + ": " + compressed
}

// Warnings are the warnings of a Request.
//
// Typed warnings keep the order in which their types first appeared.
type Warnings struct {
	lock     sync.Mutex
	disabled bool
	messages []string
	types    []string
	typed    map[string]*rangeset.Set
}

func newWarnings() *Warnings {
	return &Warnings{
		typed: make(map[string]*rangeset.Set),
	}
}

// Has returns true if there are any warnings.
func (w *Warnings) Has() bool {
	w.lock.Lock()
	defer w.lock.Unlock()
	return len(w.messages) > 0 || len(w.types) > 0
}

// List returns the typed warnings followed by the free-form warnings.
func (w *Warnings) List() []Warning {
	w.lock.Lock()
	defer w.lock.Unlock()
	warnings := make([]Warning, 0, len(w.types)+len(w.messages))
	for _, warningType := range w.types {
		warnings = append(warnings, Warning{Type: warningType, Names: w.typed[warningType].Names()})
	}
	for _, message := range w.messages {
		warnings = append(warnings, Warning{Message: message})
	}
	return warnings
}

// String returns the warnings as "TYPE: names | TYPE: names | message|message".
//
// The names of each type are compressed.
func (w *Warnings) String() string {
	var typed []string
	var messages []string
	for _, warning := range w.List() {
		if warning.Type == "" {
			messages = append(messages, warning.Message)
		} else {
			typed = append(typed, warning.String())
		}
	}
	if len(messages) > 0 {
		typed = append(typed, strings.Join(messages, "|"))
	}
	return strings.Join(typed, " | ")
}

func (w *Warnings) add(message string) {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.disabled {
		return
	}
	w.messages = append(w.messages, message)
}

func (w *Warnings) addTyped(warningType string, name string) {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.disabled {
		return
	}
	set, ok := w.typed[warningType]
	if !ok {
		set = rangeset.New()
		w.typed[warningType] = set
		w.types = append(w.types, warningType)
	}
	set.Add(name)
}
