/**
 * Shared daemon logging helper.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package daemon

import "go.uber.org/zap"

// sugar adapts a *zap.Logger into the key-value SugaredLogger the daemon
// package logs through; a nil logger (used by tests) stays nil.
func sugar(l *zap.Logger) *zap.SugaredLogger {
	if l == nil {
		return nil
	}
	return l.Sugar()
}
