// Package props implements the small, closed property type system used for
// member records and point windows.
//
// Four base types exist (string, number, boolean, date), each optionally
// required. Parsing accepts a fixed allow-list of textual encodings: numbers
// use standard float parsing, booleans a short word list, dates an ordered
// set of layouts where the first match wins. A raw value that fails to parse
// for its declared type costs only that single field assignment.
package props
