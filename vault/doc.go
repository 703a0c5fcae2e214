// Package vault stores notes as markdown files in a directory tree and
// applies generated metadata back to them.
package vault
