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

package syserror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	t.Parallel()
	err := Wrap(errors.New("unknown node kind"))
	assert.True(t, Is(err))
	assert.Equal(t, "system error: unknown node kind", err.Error())
	assert.Equal(t, err, Wrap(err))
	assert.True(t, Is(fmt.Errorf("evaluate: %w", err)))
	assert.False(t, Is(errors.New("parse error")))
	assert.Nil(t, Wrap(nil))
	assert.Equal(t, "system error: node 7", Newf("node %d", 7).Error())
}
