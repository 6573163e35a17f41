// Package sheetql answers natural-language questions about spreadsheets.
//
// A request flows through three stages:
//
//	resolver   maps free-form column references onto real headers
//	translator asks a language model for a one-line table expression
//	sandbox    evaluates that expression against a private copy of the sheet
//
// The agent package ties them to a loaded workbook; cmd/sheetql is the CLI.
// Expressions are parsed by the expr package, a closed interpreter that
// knows the table and nothing else: no imports, no I/O, no assignment.
package sheetql
