package storage

import (
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/medarchive/content-pipeline/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContinuationTokenRoundTrip(t *testing.T) {
	key := map[string]*dynamodb.AttributeValue{
		attrURL:  {S: aws.String("https://provider/medicines/aspirin")},
		attrName: {S: aws.String("Aspirin")},
	}

	token, err := encodeContinuationToken(key)
	require.NoError(t, err)
	assert.NotContains(t, token, "=", "token must be unpadded and header-safe")

	decoded, err := decodeContinuationToken(token)
	require.NoError(t, err)
	require.Contains(t, decoded, attrURL)
	require.Contains(t, decoded, attrName)
	assert.Equal(t, "https://provider/medicines/aspirin", *decoded[attrURL].S)
	assert.Equal(t, "Aspirin", *decoded[attrName].S)
}

func TestDecodeContinuationTokenRejectsGarbage(t *testing.T) {
	_, err := decodeContinuationToken("not base64!")
	require.Error(t, err)

	_, err = decodeContinuationToken("bm90IGpzb24")
	require.Error(t, err)
}

func TestEntryFromItem(t *testing.T) {
	item := map[string]*dynamodb.AttributeValue{
		attrURL:       {S: aws.String("https://provider/medicines/aspirin")},
		attrName:      {S: aws.String("Aspirin")},
		"description": {S: aws.String("pain relief")},
		"ignored":     {N: aws.String("42")},
	}

	entry := entryFromItem(item)
	assert.Equal(t, "https://provider/medicines/aspirin", entry.URL)
	assert.Equal(t, "Aspirin", entry.Name)
	assert.Equal(t, map[string]string{"description": "pain relief"}, entry.Fields)
}

func TestKeyAttributes(t *testing.T) {
	attrs := keyAttributes(interfaces.EntryKey{URL: "https://x", Name: "X"})
	require.Len(t, attrs, 2)
	assert.Equal(t, "https://x", *attrs[attrURL].S)
	assert.Equal(t, "X", *attrs[attrName].S)
}
