// Package normalize turns raw source values into canonical natural keys,
// calendar dates, numbers, and clipped text.
//
// Every function is pure and total: inputs of any dynamic type are accepted
// and failure is reported through the boolean (or error) result, never a
// panic. Callers treat a false result as "unresolved" and skip or null the
// field.
package normalize
