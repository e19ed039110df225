package service

import (
	"crypto/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	keysDomain "github.com/opensurvey/keyvault/internal/keys/domain"
)

func newWrapService(t *testing.T) WrapService {
	t.Helper()
	svc, err := NewWrapService(NewAEADManager())
	require.NoError(t, err)
	return svc
}

func randomKeyMaterial(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, keysDomain.SurveyKeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestGenerateSurveyKey(t *testing.T) {
	svc := newWrapService(t)

	key1, err := svc.GenerateSurveyKey()
	require.NoError(t, err)
	assert.Len(t, key1, keysDomain.SurveyKeySize)

	key2, err := svc.GenerateSurveyKey()
	require.NoError(t, err)
	assert.NotEqual(t, key1, key2)
}

func TestWrapUnwrapRoundTrip(t *testing.T) {
	svc := newWrapService(t)
	surveyID := uuid.Must(uuid.NewV7())
	surveyKey := randomKeyMaterial(t)

	tests := []struct {
		name       string
		factorType keysDomain.FactorType
		secret     []byte
	}{
		{"Password", keysDomain.FactorPassword, []byte("Correct1!")},
		{"RecoveryPhrase", keysDomain.FactorRecoveryPhrase, []byte("alpha bravo charlie delta echo")},
		{"FederatedIdentity", keysDomain.FactorFederatedIdentity, randomKeyMaterial(t)},
		{"OrgMaster", keysDomain.FactorOrgMaster, randomKeyMaterial(t)},
		{"PlatformEscrow", keysDomain.FactorPlatformEscrow, randomKeyMaterial(t)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrap, err := svc.Wrap(surveyID, surveyKey, tt.factorType, tt.secret, keysDomain.AESGCM)
			require.NoError(t, err)
			assert.Equal(t, surveyID, wrap.SurveyID)
			assert.Equal(t, tt.factorType, wrap.FactorType)
			assert.Len(t, wrap.Nonce, keysDomain.NonceSize)
			if tt.factorType.DerivesFromSecret() {
				assert.NotNil(t, wrap.KDFParams)
			} else {
				assert.Nil(t, wrap.KDFParams)
			}

			got, err := svc.Unwrap(&wrap, tt.secret)
			require.NoError(t, err)
			assert.Equal(t, surveyKey, got)
		})
	}
}

func TestWrapUnwrapRoundTripChaCha20(t *testing.T) {
	svc := newWrapService(t)
	surveyID := uuid.Must(uuid.NewV7())
	surveyKey := randomKeyMaterial(t)

	wrap, err := svc.Wrap(surveyID, surveyKey, keysDomain.FactorPassword, []byte("Correct1!"), keysDomain.ChaCha20)
	require.NoError(t, err)

	got, err := svc.Unwrap(&wrap, []byte("Correct1!"))
	require.NoError(t, err)
	assert.Equal(t, surveyKey, got)
}

func TestUnwrapWrongSecretFailsUniformly(t *testing.T) {
	svc := newWrapService(t)
	surveyID := uuid.Must(uuid.NewV7())
	surveyKey := randomKeyMaterial(t)

	wrap, err := svc.Wrap(surveyID, surveyKey, keysDomain.FactorPassword, []byte("Correct1!"), keysDomain.AESGCM)
	require.NoError(t, err)

	_, err = svc.Unwrap(&wrap, []byte("WrongPass"))
	assert.ErrorIs(t, err, keysDomain.ErrWrongFactor)
}

func TestUnwrapTamperedCiphertextFailsUniformly(t *testing.T) {
	svc := newWrapService(t)
	surveyID := uuid.Must(uuid.NewV7())
	surveyKey := randomKeyMaterial(t)

	wrap, err := svc.Wrap(surveyID, surveyKey, keysDomain.FactorPassword, []byte("Correct1!"), keysDomain.AESGCM)
	require.NoError(t, err)

	wrap.Ciphertext[0] ^= 0xff

	// Same error as a wrong secret: no decryption oracle.
	_, err = svc.Unwrap(&wrap, []byte("Correct1!"))
	assert.ErrorIs(t, err, keysDomain.ErrWrongFactor)
}

func TestUnwrapDifferentSurveyAADFails(t *testing.T) {
	svc := newWrapService(t)
	surveyKey := randomKeyMaterial(t)

	wrap, err := svc.Wrap(uuid.Must(uuid.NewV7()), surveyKey, keysDomain.FactorPassword, []byte("Correct1!"), keysDomain.AESGCM)
	require.NoError(t, err)

	// Rebinding the wrap to another survey must break authentication.
	wrap.SurveyID = uuid.Must(uuid.NewV7())

	_, err = svc.Unwrap(&wrap, []byte("Correct1!"))
	assert.ErrorIs(t, err, keysDomain.ErrWrongFactor)
}

func TestFactorIndependence(t *testing.T) {
	svc := newWrapService(t)
	surveyID := uuid.Must(uuid.NewV7())
	surveyKey := randomKeyMaterial(t)
	orgKey := randomKeyMaterial(t)

	passwordWrap, err := svc.Wrap(surveyID, surveyKey, keysDomain.FactorPassword, []byte("Correct1!"), keysDomain.AESGCM)
	require.NoError(t, err)
	orgWrap, err := svc.Wrap(surveyID, surveyKey, keysDomain.FactorOrgMaster, orgKey, keysDomain.AESGCM)
	require.NoError(t, err)

	// Corrupt the password wrap beyond recovery.
	for i := range passwordWrap.Ciphertext {
		passwordWrap.Ciphertext[i] = 0
	}

	// The org_master wrap still unwraps to the original key.
	got, err := svc.Unwrap(&orgWrap, orgKey)
	require.NoError(t, err)
	assert.Equal(t, surveyKey, got)
}

func TestWrapRejectsInvalidInput(t *testing.T) {
	svc := newWrapService(t)
	surveyID := uuid.Must(uuid.NewV7())
	surveyKey := randomKeyMaterial(t)

	t.Run("ShortSurveyKey", func(t *testing.T) {
		_, err := svc.Wrap(surveyID, []byte("short"), keysDomain.FactorPassword, []byte("x"), keysDomain.AESGCM)
		assert.ErrorIs(t, err, keysDomain.ErrInvalidKeySize)
	})

	t.Run("UnknownFactor", func(t *testing.T) {
		_, err := svc.Wrap(surveyID, surveyKey, keysDomain.FactorType("totp"), []byte("x"), keysDomain.AESGCM)
		assert.ErrorIs(t, err, keysDomain.ErrFactorUnavailable)
	})

	t.Run("ShortDirectKeyMaterial", func(t *testing.T) {
		_, err := svc.Wrap(surveyID, surveyKey, keysDomain.FactorOrgMaster, []byte("short"), keysDomain.AESGCM)
		assert.ErrorIs(t, err, keysDomain.ErrInvalidKeySize)
	})

	t.Run("UnknownAlgorithm", func(t *testing.T) {
		_, err := svc.Wrap(surveyID, surveyKey, keysDomain.FactorPassword, []byte("x"), keysDomain.Algorithm("des"))
		assert.ErrorIs(t, err, keysDomain.ErrUnsupportedAlgorithm)
	})
}

func TestNonceSourceUniqueness(t *testing.T) {
	ns, err := NewNonceSource()
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		nonce := ns.Next()
		require.Len(t, nonce, keysDomain.NonceSize)
		key := string(nonce)
		assert.False(t, seen[key], "nonce reused")
		seen[key] = true
	}
}

func TestDeriveWrappingKeyDeterministic(t *testing.T) {
	params, err := NewKDFParams()
	require.NoError(t, err)

	key1 := DeriveWrappingKey([]byte("Correct1!"), params)
	key2 := DeriveWrappingKey([]byte("Correct1!"), params)
	assert.Equal(t, key1, key2)
	assert.Len(t, key1, keysDomain.SurveyKeySize)

	other := DeriveWrappingKey([]byte("WrongPass"), params)
	assert.NotEqual(t, key1, other)
}
