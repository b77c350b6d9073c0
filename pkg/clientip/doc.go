// Package clientip resolves the address an HTTP request came from. The
// two-factor endpoints use it to key password attempt limits and to annotate
// security logs.
package clientip
