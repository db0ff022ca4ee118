// Package filestore is the file area export jobs write to. Every job owns a
// single file that is appended chunk by chunk and read back for download
// and transfer. The directory carries an empty index.html and a .htaccess
// that deny directory listings when it is exposed by a web server.
package filestore
