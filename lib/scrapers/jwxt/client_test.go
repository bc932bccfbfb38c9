package jwxt

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestSessionRoundTrip(t *testing.T) {
	portal := newFakePortal()
	portal.setScores(scoresPage(scoreRowCells("0812001", "操作系统", "92")))
	server := portal.server(t)

	original := newTestClient(t, server.URL, &scriptedSolver{answers: []string{portal.challenge}})
	status, err := original.Login(testContext(t), portal.account, portal.password)
	require.NoError(t, err)
	require.Equal(t, LoginSuccess, status)

	blob, err := original.Serialize()
	require.NoError(t, err)

	// a brand new client restored from the blob behaves like the original
	restored := newTestClient(t, server.URL, noGuessSolver{})
	err = restored.Restore(blob)
	require.NoError(t, err)

	outcome := restored.FetchScores(testContext(t))
	require.Equal(t, FetchOK, outcome.Status)

	// and serializing it again yields the same session state
	blob2, err := restored.Serialize()
	require.NoError(t, err)

	var a, b sessionState
	require.NoError(t, json.Unmarshal([]byte(blob), &a))
	require.NoError(t, json.Unmarshal([]byte(blob2), &b))
	if diff := cmp.Diff(a.Cookies, b.Cookies); diff != "" {
		t.Fatalf("cookie state mismatch (-first +second):\n%s", diff)
	}
}

func TestRestoreRejectsGarbage(t *testing.T) {
	portal := newFakePortal()
	server := portal.server(t)

	client := newTestClient(t, server.URL, noGuessSolver{})
	err := client.Restore("definitely not json")
	require.Error(t, err)
}
