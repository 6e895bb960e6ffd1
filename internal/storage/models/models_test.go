// Copyright (C) 2026 wordtinker
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageRoundTrip(t *testing.T) {
	for _, stage := range Stages() {
		stored, err := stage.Value()
		require.NoError(t, err)

		var decoded Stage
		require.NoError(t, decoded.Scan(stored))
		assert.Equal(t, stage, decoded)
	}
}

func TestProjectRoundTrip(t *testing.T) {
	for _, project := range Projects() {
		stored, err := project.Value()
		require.NoError(t, err)

		var decoded Project
		require.NoError(t, decoded.Scan(stored))
		assert.Equal(t, project, decoded)
	}
}

func TestProjectStoredFormUsesNameAndLabel(t *testing.T) {
	stored, err := ProjectRelationships.Value()
	require.NoError(t, err)
	assert.Equal(t, "Relationships;Friends & Family", stored)
}

func TestScanUnrecognizedNameFails(t *testing.T) {
	var stage Stage
	err := stage.Scan("Shipped;Shipped")
	require.Error(t, err, "a renamed or removed stage must not resolve silently")

	var project Project
	err = project.Scan([]byte("Hobby;Hobby"))
	require.Error(t, err)

	var kind GeneratorKind
	err = kind.Scan("Weekly;Weekly")
	require.Error(t, err)
}

func TestScanMalformedValueFails(t *testing.T) {
	var stage Stage
	assert.Error(t, stage.Scan("Done"))
	assert.Error(t, stage.Scan(42))
}

func TestValueUnknownVariantFails(t *testing.T) {
	_, err := Stage("Shipped").Value()
	assert.Error(t, err)
}

func TestParseByNameOrLabel(t *testing.T) {
	p, err := ParseProject("Friends & Family")
	require.NoError(t, err)
	assert.Equal(t, ProjectRelationships, p)

	p, err = ParseProject("Development")
	require.NoError(t, err)
	assert.Equal(t, ProjectDevelopment, p)

	s, err := ParseStage("ToDo")
	require.NoError(t, err)
	assert.Equal(t, StageToDo, s)

	_, err = ParseStage("nope")
	assert.Error(t, err)

	k, err := ParseGeneratorKind("Monthly")
	require.NoError(t, err)
	assert.Equal(t, GeneratorMonthly, k)
}

func TestDateOfTruncates(t *testing.T) {
	instant := time.Date(2024, time.March, 10, 17, 45, 12, 999, time.UTC)
	assert.Equal(t, Date(2024, time.March, 10), DateOf(instant))
}
