package gateway

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aa547887/GameSpace-sub003/internal/config"
)

func testSigner() *Signer {
	cfg := config.DefaultConfig().Payment
	return NewSigner(&cfg)
}

func sampleForm() url.Values {
	form := url.Values{}
	form.Set("MerchantID", "2000132")
	form.Set("MerchantTradeNo", "OR0000000001")
	form.Set("TradeNo", "T20260831001")
	form.Set("TradeAmt", "1790")
	form.Set("RtnCode", "1")
	form.Set("RtnMsg", "交易成功")
	form.Set("PaymentDate", "2026/08/31 10:00:00")
	return form
}

func TestSignVerifyRoundTrip(t *testing.T) {
	s := testSigner()
	form := sampleForm()
	form.Set(SignField, s.Sign(form))
	assert.True(t, s.Verify(form))
}

func TestSignIgnoresExistingMac(t *testing.T) {
	s := testSigner()
	form := sampleForm()
	want := s.Sign(form)

	// 计算时要排除检核码栏位本身，否则验证永远过不了
	form.Set(SignField, "anything")
	assert.Equal(t, want, s.Sign(form))
}

func TestVerifyCaseInsensitive(t *testing.T) {
	s := testSigner()
	form := sampleForm()
	form.Set(SignField, strings.ToLower(s.Sign(form)))
	assert.True(t, s.Verify(form))
}

func TestVerifyRejectsTamperedField(t *testing.T) {
	s := testSigner()
	form := sampleForm()
	form.Set(SignField, s.Sign(form))

	form.Set("TradeAmt", "1")
	assert.False(t, s.Verify(form))
}

func TestVerifyRejectsMissingMac(t *testing.T) {
	s := testSigner()
	assert.False(t, s.Verify(sampleForm()))
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	cfg := config.DefaultConfig().Payment
	signer := NewSigner(&cfg)
	form := sampleForm()
	form.Set(SignField, signer.Sign(form))

	other := cfg
	other.HashKey = "AnotherKey123456"
	assert.False(t, NewSigner(&other).Verify(form))
}

func TestSignDeterministic(t *testing.T) {
	s := testSigner()
	first := s.Sign(sampleForm())
	second := s.Sign(sampleForm())
	require.Equal(t, first, second)
	assert.Len(t, first, 32)
	assert.Equal(t, strings.ToUpper(first), first)
}
