// Package utils provides shared low-level helpers for the provider adapters:
// HTTP helpers that classify every failure into the gateway error taxonomy
// ([DoPostSync], [DoGet], [DoPostStream]), JSON repair for the stream salvage
// pass and hand-edited transcripts ([RepairJSON]), and log truncation.
package utils
