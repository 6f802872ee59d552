// Package interfaces defines the domain types, error taxonomy, and external
// store contracts shared by every component of the content pipeline.
//
// The pipeline archives a rate-limited content API into a keyed item store.
// Three kinds of external stores participate:
//
//   - SecretStore holds the RSA private key used to sign client assertions.
//   - ParameterStore holds the public key and the derived JWKS document.
//   - CatalogStore holds one record per catalog entry, keyed by (URL, Name),
//     and supports a filtered, resumable scan over entries that still lack a
//     given field.
//
// Components communicate failures through the sentinel errors declared here.
// Callers classify with errors.Is; the sentinels are always wrapped with
// operation context via fmt.Errorf("...: %w", err).
//
// This package has no dependencies on other packages in the module, allowing
// it to be imported by all components without dependency cycles.
package interfaces
