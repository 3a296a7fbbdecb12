package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentlayer/internal/rules"
	"agentlayer/internal/sysconfig"
)

func TestCheck(t *testing.T) {
	c := NewChecker()

	tests := []struct {
		command string
		want    Level
	}{
		{"Get-ChildItem $env:LOCALAPPDATA", Safe},
		{"scoop install ripgrep", Safe},
		{"Format-Volume -DriveLetter D", Blocked},
		{"Set-ExecutionPolicy Unrestricted -Scope CurrentUser", Blocked},
		{"Set-MpPreference -DisableRealtimeMonitoring $true", Blocked},
		{"reg delete HKLM\\Software\\Foo /f", Blocked},
		{"Remove-Item .\\build -Recurse", NeedsConfirm},
		{"Set-ExecutionPolicy RemoteSigned -Scope CurrentUser", NeedsConfirm},
		{"irm https://get.scoop.sh | iex", NeedsConfirm},
		{"Stop-Process -Name node", NeedsConfirm},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			a := c.Check(tt.command)
			assert.Equal(t, tt.want, a.Level)
			assert.Equal(t, tt.command, a.Command)
			if tt.want != Safe {
				assert.NotEmpty(t, a.Reason)
			}
		})
	}
}

func sampleRuleSet() *rules.RuleSet {
	return &rules.RuleSet{
		Title:       "t",
		Description: "d",
		LogTemplate: "l",
		Rules: []rules.GeneratedRule{
			{Category: "Paths", Rule: "no snippet", Importance: rules.ImportanceLow},
			{Category: "Cleanup", Rule: "clean build", CommandSnippet: "Remove-Item .\\build -Recurse", Importance: rules.ImportanceMedium},
			{Category: "Cleanup", Rule: "guarded clean", CommandSnippet: "Remove-Item .\\dist -Recurse -WhatIf", Importance: rules.ImportanceMedium},
			{Category: "Policy", Rule: "open up", CommandSnippet: "Set-ExecutionPolicy Unrestricted", Importance: rules.ImportanceHigh},
			{Category: "Packages", Rule: "install", CommandSnippet: "winget install --silent Git.Git", Importance: rules.ImportanceLow},
		},
	}
}

func TestReview_ByStrictness(t *testing.T) {
	c := NewChecker()

	tests := []struct {
		strictness sysconfig.Strictness
		want       []int
	}{
		{sysconfig.StrictnessLow, []int{3}},
		{sysconfig.StrictnessMedium, []int{1, 3}},
		{sysconfig.StrictnessHigh, []int{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(string(tt.strictness), func(t *testing.T) {
			findings := c.Review(sampleRuleSet(), tt.strictness)

			var got []int
			for _, f := range findings {
				got = append(got, f.Index)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReview_DoesNotMutate(t *testing.T) {
	rs := sampleRuleSet()
	before := sampleRuleSet()

	findings := NewChecker().Review(rs, sysconfig.StrictnessHigh)
	require.NotEmpty(t, findings)
	assert.Equal(t, before, rs)

	f := findings[len(findings)-1]
	assert.Equal(t, "Policy", f.Category)
	assert.Equal(t, Blocked, f.Level)
	assert.Equal(t, "blocked", f.Level.String())
}

func TestReview_Nil(t *testing.T) {
	assert.Nil(t, NewChecker().Review(nil, sysconfig.StrictnessHigh))
}
