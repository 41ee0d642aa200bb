// Package kms wraps the AWS KMS API calls used to sign EVM transactions.
package kms

import (
	"encoding/asn1"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/kms"
)

// Client is the subset of the KMS API needed to sign with an asymmetric secp256k1 key.
type Client interface {
	GetPublicKey(input *kms.GetPublicKeyInput) (*kms.GetPublicKeyOutput, error)
	Sign(input *kms.SignInput) (*kms.SignOutput, error)
}

var _ Client = (*kms.KMS)(nil)

// ClientConfig selects the key and the AWS credentials used to reach it.
type ClientConfig struct {
	KeyID     string
	KeyRegion string
	// AWSProfile names a profile in the shared credentials file. When empty the default
	// credential chain (environment variables first) is used.
	AWSProfile string
}

func (c ClientConfig) validate() error {
	if c.KeyID == "" {
		return errors.New("KMS key ID is required")
	}
	if c.KeyRegion == "" {
		return errors.New("KMS key region is required")
	}

	return nil
}

// NewClient creates a KMS client. Credentials are resolved lazily on the first call.
func NewClient(cfg ClientConfig) (Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid KMS config: %w", err)
	}

	awsCfg := &aws.Config{Region: aws.String(cfg.KeyRegion)}
	if cfg.AWSProfile != "" {
		awsCfg.Credentials = credentials.NewSharedCredentials("", cfg.AWSProfile)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return kms.New(sess), nil
}

// SPKI is the ASN.1 SubjectPublicKeyInfo returned by GetPublicKey.
type SPKI struct {
	AlgorithmIdentifier asn1.RawValue
	SubjectPublicKey    asn1.BitString
}

// ECDSASig is the ASN.1 form of the signature returned by Sign.
type ECDSASig struct {
	R asn1.RawValue
	S asn1.RawValue
}
