// Package normalisers converts résumé files to plain text. Each format has
// its own subpackage; Registry picks one by file extension.
package normalisers
