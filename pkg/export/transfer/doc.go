// Package transfer delivers completed export files. The Dispatcher picks
// the Strategy for a job's method and makes exactly one attempt under a
// timeout; every failure comes back as *export.TransferError naming the
// method and target so it can be shown without log access.
//
// Methods: email (SMTP, Mailgun or SendGrid, file attached), http_post (raw
// CSV body), ftp and ftps (jlaffaye/ftp, passive mode, explicit or implicit
// TLS) and sftp (pkg/sftp over x/crypto/ssh with known_hosts verification).
// Incomplete settings fail with ErrNotConfigured before any connection.
package transfer
