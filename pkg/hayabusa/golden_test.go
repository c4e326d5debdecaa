package hayabusa

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/Cyberappy/Hayabusa-setup/pkg/sigma"
)

func TestConvertGoldenScheduledTask(t *testing.T) {
	rule, err := sigma.ParseRule([]byte(scheduledTaskRule))
	require.NoError(t, err)

	out, err := New(DefaultOptions()).Convert(rule)
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "scheduled_task", out)
}

func TestConvertGoldenWildcardFilter(t *testing.T) {
	rule, err := sigma.ParseRule([]byte(`
title: Svchost Anomaly
id: 71111111-0000-4eb9-a1b6-d0f16ac5d34c
level: high
logsource:
    product: windows
detection:
    selection:
        Image|endswith: \svchost.exe
        CommandLine|contains: -k netsvcs
    filter:
        ParentImage|startswith: C:\Windows\System32
    condition: selection and not filter
`))
	require.NoError(t, err)

	out, err := New(DefaultOptions()).Convert(rule)
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "wildcard_filter", out)
}
