// Package keymaterial generates the pipeline's RSA key pair and derives the
// public key-set (JWKS) the provider verifies client assertions against.
//
// Generation is a manual, once-per-rotation operation: it unconditionally
// overwrites any prior material in the secret and parameter stores, and the
// new key-set must be re-registered with the provider out of band before the
// pipeline can authenticate again.
//
// Store names are deterministic functions of the configured base identifier:
//
//	<base>-private-key   private key PEM in the secret store
//	/<base>/public-key   public key PEM in the parameter store
//	/<base>/jwks         JWKS JSON in the parameter store
package keymaterial
