package xsoap

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/tclink/pkg/htng/xmlns"
)

func fixedBuilder() *HeaderBuilder {
	return NewHeaderBuilder(
		WithClock(func() time.Time {
			return time.Date(2026, 8, 24, 12, 30, 45, 123_000_000, time.UTC)
		}),
		WithNonceSource(func() ([]byte, error) {
			return []byte("0123456789abcdef"), nil
		}),
	)
}

func validInput() HeaderInput {
	return HeaderInput{
		MessageID: "PMS-HOTEL001-INVENTORY-abc",
		Endpoint:  "https://pms.example.com/HTNGService",
		HotelCode: "HOTEL001",
		Username:  "tcuser",
		Password:  "secret-password",
	}
}

func TestHeaderBuilder_Build(t *testing.T) {
	header, err := fixedBuilder().Build(validInput())
	require.NoError(t, err)

	assert.Equal(t, "PMS-HOTEL001-INVENTORY-abc", header.FindElement("wsa:MessageID").Text())
	assert.Equal(t, "https://pms.example.com/HTNGService", header.FindElement("wsa:To").Text())
	assert.Equal(t, "HOTEL001", header.FindElement("wsa:From/wsa:ReferenceProperties/htn:HotelCode").Text())
	assert.Equal(t, xmlns.WSAAnonymous, header.FindElement("wsa:ReplyTo/wsa:Address").Text())
	assert.Equal(t, DefaultAction, header.FindElement("wsa:Action").Text())

	token := header.FindElement("wsse:Security/wsse:UsernameToken")
	require.NotNil(t, token)
	assert.Equal(t, "tcuser", token.FindElement("wsse:Username").Text())

	password := token.FindElement("wsse:Password")
	assert.Equal(t, "secret-password", password.Text())
	assert.Equal(t, xmlns.PasswordText, password.SelectAttrValue("Type", ""))

	nonce := token.FindElement("wsse:Nonce")
	assert.Equal(t, xmlns.Base64Binary, nonce.SelectAttrValue("EncodingType", ""))
	decoded, err := base64.StdEncoding.DecodeString(nonce.Text())
	require.NoError(t, err)
	assert.Len(t, decoded, 16)

	// UTC 毫秒格式
	assert.Equal(t, "2026-08-24T12:30:45.123Z", token.FindElement("wsu:Created").Text())
}

func TestHeaderBuilder_Deterministic(t *testing.T) {
	// 固定时钟与 nonce 后，两次构建序列化结果一致
	b := fixedBuilder()
	h1, err := b.Build(validInput())
	require.NoError(t, err)
	h2, err := b.Build(validInput())
	require.NoError(t, err)

	s1 := serialize(t, h1)
	s2 := serialize(t, h2)
	assert.Equal(t, s1, s2)
}

func TestHeaderBuilder_InputValidation(t *testing.T) {
	b := fixedBuilder()

	in := validInput()
	in.MessageID = ""
	_, err := b.Build(in)
	assert.ErrorIs(t, err, ErrMissingMessageID)

	in = validInput()
	in.Endpoint = ""
	_, err = b.Build(in)
	assert.ErrorIs(t, err, ErrMissingEndpoint)

	in = validInput()
	in.Password = ""
	_, err = b.Build(in)
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestHeaderBuilder_RelatesTo(t *testing.T) {
	in := validInput()
	in.RelatesTo = "REQ-123"
	header, err := fixedBuilder().Build(in)
	require.NoError(t, err)
	assert.Equal(t, "REQ-123", header.FindElement("wsa:RelatesTo").Text())
}

func TestWrap(t *testing.T) {
	header, err := fixedBuilder().Build(validInput())
	require.NoError(t, err)

	body := etree.NewElement("OTA_HotelInvCountNotifRQ")
	body.CreateAttr("xmlns", xmlns.OTA)

	out, err := Wrap(header, body)
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, xmlns.SoapEnv12)
	assert.Contains(t, s, "<soap:Header>")
	assert.Contains(t, s, "<soap:Body>")
	assert.Contains(t, s, "OTA_HotelInvCountNotifRQ")

	_, err = Wrap(nil, nil)
	assert.ErrorIs(t, err, ErrNilBody)
}

func TestWrapAck(t *testing.T) {
	body := etree.NewElement("OTA_HotelResNotifRS")
	out, err := WrapAck("ACK-1", "REQ-42", body)
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(out))
	rel := doc.FindElement("//wsa:RelatesTo")
	require.NotNil(t, rel)
	assert.Equal(t, "REQ-42", rel.Text())
}

func TestNewFault(t *testing.T) {
	out, err := NewFault(Fault{Code: FaultClient, String: "Authentication Error: bad password"})
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, xmlns.SoapEnv11)
	assert.Contains(t, s, "<faultcode>soap:Client</faultcode>")
	assert.Contains(t, s, "Authentication Error: bad password")
	assert.False(t, strings.Contains(s, "<detail>"))
}

func TestNewFault12(t *testing.T) {
	out, err := NewFault12(Fault{Code: FaultServer, String: "internal error", Detail: "log ref 123"})
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, xmlns.SoapEnv12)
	assert.Contains(t, s, "soap:Receiver")
	assert.Contains(t, s, "log ref 123")
}

func serialize(t *testing.T, el *etree.Element) string {
	t.Helper()
	doc := etree.NewDocument()
	doc.AddChild(el.Copy())
	s, err := doc.WriteToString()
	require.NoError(t, err)
	return s
}
