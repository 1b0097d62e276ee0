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

package appcmd

import (
	"strings"
)

// ValidateHostHasNoPaths validates that the server host has no path component.
//
// A scheme prefix is allowed.
func ValidateHostHasNoPaths(host string) error {
	withoutScheme := host
	if _, after, ok := strings.Cut(host, "://"); ok {
		withoutScheme = after
	}
	parts := strings.Split(withoutScheme, "/")
	if len(parts) > 1 {
		paths := "/" + strings.Join(parts[1:], "/")
		// The host has no paths, but ends in a /, which is valid
		if paths == "/" {
			return nil
		}
		return NewInvalidArgumentErrorf(`invalid range server host, must not contain any paths. Try removing "%s" from the host.`, paths)
	}
	return nil
}
