// Package storage provides the concrete backends for the pipeline's three
// external stores.
//
// Catalog store (the archive itself):
//
//   - DynamoDB: composite key (URL hash, Name range), one top-level
//     attribute per enriched field, attribute_not_exists filter scans with
//     resumable continuation tokens.
//   - In-memory: same contract with deterministic ordering, used by tests
//     and local runs.
//
// Secret store (private key material):
//
//   - AWS Secrets Manager
//   - HashiCorp Vault (KV v2)
//   - In-memory
//
// Parameter store (public key material):
//
//   - AWS SSM Parameter Store
//   - In-memory
//
// Secret and parameter backends are selected from location URIs by the
// Factory:
//
//	awssm://eu-west-2          Secrets Manager in a region
//	vault://host:8200/secret/pipeline
//	awsssm://eu-west-2         SSM Parameter Store in a region
//	mem://                     in-memory (testing/local only)
package storage
