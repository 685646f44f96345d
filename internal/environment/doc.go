// Package environment provisions the isolated container environment a test
// case runs in.
//
// One Provisioner owns one Environment: a uniquely named network and volume,
// a fixed pool of engine containers sharing the volume at /apps, and one
// gateway container published on the test case's port. Create never rolls
// back; Destroy removes whatever Create managed to build, so callers always
// call Destroy regardless of the Create result.
package environment
