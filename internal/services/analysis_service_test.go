package services

import (
	"testing"
)

func TestVerdictFromReply(t *testing.T) {
	cases := map[string]string{
		"VERDICT: GUILTY. This token shows honeypot behavior.": "GUILTY",
		"The accused token is NOT GUILTY, citizen.":            "NOT GUILTY",
		"not guilty as charged":                                "NOT GUILTY",
		"Verdict: guilty":                                      "GUILTY",
		"Tell me about this contract.":                         "",
		"": "",
	}
	for reply, want := range cases {
		if got := verdictFromReply(reply); got != want {
			t.Errorf("verdictFromReply(%q) = %q, want %q", reply, got, want)
		}
	}
}
