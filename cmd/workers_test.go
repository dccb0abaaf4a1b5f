/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/


package main

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"go.elastic.co/apm/module/apmlogrus/v2"
)

func TestWorkersReportErrorsToAPM(t *testing.T) {
	var hooked bool
	for _, hook := range logrus.StandardLogger().Hooks[logrus.ErrorLevel] {
		if _, ok := hook.(*apmlogrus.Hook); ok {
			hooked = true
		}
	}
	assert.True(t, hooked)
}
