package operation

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KilimcininKorOglu/obacore/internal/dn"
	"github.com/KilimcininKorOglu/obacore/internal/filter"
	"github.com/KilimcininKorOglu/obacore/internal/ldap"
	"github.com/KilimcininKorOglu/obacore/internal/logging"
)

func TestAppendErrorMessage(t *testing.T) {
	var r ResultState

	r.AppendErrorMessage("a")
	assert.Equal(t, "a", r.ErrorMessage())

	r.AppendErrorMessage("b")
	assert.Equal(t, "a  b", r.ErrorMessage())

	r.AppendErrorMessage("")
	assert.Equal(t, "a  b", r.ErrorMessage())
}

func TestSetResponseData(t *testing.T) {
	var r ResultState
	r.SetResponseData(nil)
	assert.Equal(t, ldap.ResultSuccess, r.ResultCode())
	assert.Empty(t, r.ErrorMessage())

	err := ldap.NewResultError(ldap.ResultReferral, "look elsewhere").
		WithMatchedDN("dc=example,dc=com").
		WithReferrals("ldap://a.example.com/", "ldap://b.example.com/")
	r.AppendErrorMessage("first")
	r.SetResponseData(errors.Join(errors.New("context"), err))

	result := r.Result()
	assert.Equal(t, ldap.ResultReferral, result.ResultCode)
	assert.Equal(t, "dc=example,dc=com", result.MatchedDN)
	assert.Equal(t, "first  look elsewhere", result.DiagnosticMessage)
	assert.Equal(t, []string{"ldap://a.example.com/", "ldap://b.example.com/"}, result.Referral)

	var plain ResultState
	plain.SetResponseData(errors.New("boom"))
	assert.Equal(t, ldap.ResultOperationsError, plain.ResultCode())
	assert.Equal(t, "boom", plain.ErrorMessage())
}

func TestResponseControlsKeepOrder(t *testing.T) {
	var r ResultState
	r.AddResponseControl(ldap.Control{OID: "1.2.3"})
	r.AddResponseControl(ldap.Control{OID: "1.2.4"})

	controls := r.ResponseControls()
	require.Len(t, controls, 2)
	assert.Equal(t, "1.2.3", controls[0].OID)
	assert.Equal(t, "1.2.4", controls[1].OID)
}

func TestNewOperationIsUndefined(t *testing.T) {
	op := NewAddOperation(nil, 1, 2, nil, &ldap.AddRequest{})
	assert.Equal(t, ldap.ResultUndefined, op.ResultCode())
	assert.Equal(t, KindAdd, op.Kind())
	assert.Equal(t, int64(1), op.OperationID())
	assert.Equal(t, int64(2), op.MessageID())
	assert.Zero(t, op.ProcessingTime())
	assert.Equal(t, CancelPending, op.CancelResult())
}

func TestAuthorizationDN(t *testing.T) {
	conn := newFakeConn(nil)
	conn.authDN = "uid=alice,dc=example,dc=com"
	op := NewModifyOperation(conn, 1, 1, nil, &ldap.ModifyRequest{})

	assert.Equal(t, "uid=alice,dc=example,dc=com", op.AuthorizationDN())

	op.SetAuthorizationDN("uid=proxy,dc=example,dc=com")
	assert.Equal(t, "uid=proxy,dc=example,dc=com", op.AuthorizationDN())

	assert.Equal(t, "", NewModifyOperation(nil, 1, 1, nil, &ldap.ModifyRequest{}).AuthorizationDN())
}

func TestOpContextAttachments(t *testing.T) {
	var c OpContext

	assert.Nil(t, c.SetAttachment("Key", 1))
	assert.Equal(t, 1, c.SetAttachment("Key", 2))
	assert.Nil(t, c.SetAttachment("key", 3))

	v, ok := c.Attachment("Key")
	require.True(t, ok)
	assert.Equal(t, 2, v)

	assert.Equal(t, 3, c.RemoveAttachment("key"))
	_, ok = c.Attachment("key")
	assert.False(t, ok)
}

func TestOpContextSubOperationsAreCopied(t *testing.T) {
	var c OpContext
	c.AddSubOperation(&SubOperation{Backend: "a"})

	subs := c.SubOperations()
	subs[0] = &SubOperation{Backend: "b"}

	assert.Equal(t, "a", c.SubOperations()[0].Backend)
}

func TestDecodedDNIsCached(t *testing.T) {
	calls := 0
	orig := decodeDN
	decodeDN = func(s string) (*dn.DN, error) {
		calls++
		return orig(s)
	}
	t.Cleanup(func() { decodeDN = orig })

	op := NewAddOperation(nil, 1, 1, nil, &ldap.AddRequest{Entry: "uid=a,dc=example,dc=com"})

	first := op.EntryDN()
	second := op.EntryDN()
	require.NotNil(t, first)
	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)

	op.SetRawEntryDN("uid=b,dc=example,dc=com")
	third := op.EntryDN()
	assert.Equal(t, 2, calls)
	assert.Equal(t, "uid=b,dc=example,dc=com", third.String())

	op.EntryDN()
	assert.Equal(t, 2, calls)
}

func TestSetEntryDNNilIsRoot(t *testing.T) {
	op := NewAddOperation(nil, 1, 1, nil, &ldap.AddRequest{Entry: "uid=a,dc=example,dc=com"})

	op.SetEntryDN(nil)
	assert.Empty(t, op.RawEntryDN())
	require.NotNil(t, op.EntryDN())
	assert.True(t, op.EntryDN().IsRoot())
}

func TestDecodedFilterIsCached(t *testing.T) {
	calls := 0
	orig := decodeFilter
	decodeFilter = func(s string) (*filter.Filter, error) {
		calls++
		return orig(s)
	}
	t.Cleanup(func() { decodeFilter = orig })

	op := NewSearchOperation(nil, 1, 1, nil, &ldap.SearchRequest{Filter: "(uid=bob)"})
	op.Filter()
	op.Filter()
	assert.Equal(t, 1, calls)

	op.SetRawFilter("(uid=carol)")
	assert.Equal(t, "(uid=carol)", op.Filter().String())
	assert.Equal(t, 2, calls)
}

func TestDecodeFailureRecordsOutcome(t *testing.T) {
	op := NewAddOperation(nil, 1, 1, nil, &ldap.AddRequest{
		Entry:      "uid=a,dc=example,dc=com",
		Attributes: []ldap.Attribute{ldap.NewAttribute("bad attr", "x")},
	})

	assert.Nil(t, op.Attributes())
	assert.Nil(t, op.Entry())
	assert.Equal(t, ldap.ResultInvalidAttributeSyntax, op.ResultCode())
	assert.Contains(t, op.ErrorMessage(), "uid=a,dc=example,dc=com")
}

func TestAddEntry(t *testing.T) {
	op := NewAddOperation(nil, 1, 1, nil, &ldap.AddRequest{
		Entry: "uid=a,dc=example,dc=com",
		Attributes: []ldap.Attribute{
			ldap.NewAttribute("objectClass", "person"),
			ldap.NewAttribute("CN", "A"),
			ldap.NewAttribute("cn", "Alias"),
		},
	})

	entry := op.Entry()
	require.NotNil(t, entry)
	assert.Equal(t, "uid=a,dc=example,dc=com", entry.DN)
	assert.Equal(t, []string{"A", "Alias"}, entry.GetAttribute("cn"))
}

func TestModifications(t *testing.T) {
	tests := []struct {
		name  string
		mods  []ldap.Modification
		valid bool
	}{
		{"replace", []ldap.Modification{{Operation: ldap.ModifyOperationReplace, Attribute: ldap.NewAttribute("cn", "x")}}, true},
		{"increment", []ldap.Modification{{Operation: ldap.ModifyOperationIncrement, Attribute: ldap.NewAttribute("uidNumber", "1")}}, true},
		{"increment without value", []ldap.Modification{{Operation: ldap.ModifyOperationIncrement, Attribute: ldap.NewAttribute("uidNumber")}}, false},
		{"unknown operation", []ldap.Modification{{Operation: ldap.ModifyOperation(9), Attribute: ldap.NewAttribute("cn", "x")}}, false},
		{"bad attribute", []ldap.Modification{{Operation: ldap.ModifyOperationAdd, Attribute: ldap.NewAttribute("", "x")}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := NewModifyOperation(nil, 1, 1, nil, &ldap.ModifyRequest{Object: "uid=a,dc=example,dc=com", Changes: tt.mods})
			mods := op.Modifications()
			if tt.valid {
				assert.Len(t, mods, len(tt.mods))
				assert.Equal(t, ldap.ResultUndefined, op.ResultCode())
			} else {
				assert.Nil(t, mods)
				assert.Equal(t, ldap.ResultProtocolError, op.ResultCode())
			}
		})
	}
}

func TestModifyDNNewDN(t *testing.T) {
	superior := "ou=archive,dc=example,dc=com"
	tests := []struct {
		name        string
		newSuperior *string
		want        string
	}{
		{"rename in place", nil, "uid=robert,ou=people,dc=example,dc=com"},
		{"move", &superior, "uid=robert,ou=archive,dc=example,dc=com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := NewModifyDNOperation(nil, 1, 1, nil, &ldap.ModifyDNRequest{
				Entry:        "uid=bob,ou=people,dc=example,dc=com",
				NewRDN:       "uid=robert",
				DeleteOldRDN: true,
				NewSuperior:  tt.newSuperior,
			})

			newDN := op.NewDN()
			require.NotNil(t, newDN)
			assert.Equal(t, tt.want, newDN.String())
			assert.True(t, op.DeleteOldRDN())
		})
	}

	bad := NewModifyDNOperation(nil, 1, 1, nil, &ldap.ModifyDNRequest{
		Entry:  "uid=bob,dc=example,dc=com",
		NewRDN: "uid=a,dc=b",
	})
	assert.Nil(t, bad.NewDN())
	assert.Equal(t, ldap.ResultInvalidDNSyntax, bad.ResultCode())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "add", KindAdd.String())
	assert.Equal(t, "modifyDN", KindModifyDN.String())
	assert.Equal(t, "unknown", Kind(0).String())
}

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.Config{Level: "debug", Format: "json", Writer: &buf})

	h := newHarness(func(cfg *EngineConfig) {
		cfg.LogSink = NewAccessLog(logger)
	})
	h.ng.add("dc=example,dc=com", streamWorkflow(testEntries(1)))

	h.engine.Run(h.add("uid=bob,dc=other,dc=org"))
	h.engine.Run(h.search("dc=example,dc=com", "(uid=alice)"))

	out := buf.String()
	assert.Contains(t, out, "operation request")
	assert.Contains(t, out, "operation response")
	assert.Contains(t, out, `"dn":"uid=bob,dc=other,dc=org"`)
	assert.Contains(t, out, `"result_name":"noSuchObject"`)
	assert.Contains(t, out, `"filter":"(uid=alice)"`)
	assert.Contains(t, out, "search entry")
	assert.Contains(t, out, "etime_ms")
	assert.Contains(t, out, `"@module":"obacore.access"`)
}
