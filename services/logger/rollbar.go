package logsvc

import (
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/ecolemoderne/campus/core"
	"github.com/ecolemoderne/campus/core/user"
)

// RollbarLogger reports to Rollbar and mirrors everything to a local logger.
type RollbarLogger struct {
	local *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(local *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{local: local}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// prepare flattens args for rollbar. A user.User arg becomes the reported
// person instead of a payload value; the first one wins.
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var personSet bool
	flat := make([]interface{}, 0, len(args)+1)
	flat = append(flat, msg)
	for _, arg := range args {
		if usr, ok := arg.(user.User); ok {
			if !personSet {
				rollbar.SetPerson(usr.ID, usr.Name, usr.Email)
				personSet = true
			}
		} else {
			flat = append(flat, arg)
		}
	}
	if !personSet {
		rollbar.ClearPerson()
	}
	return flat
}

func (l RollbarLogger) echo(msg string, args []interface{}) {
	l.local.Println(msg)
	for _, arg := range args {
		l.local.Printf("%+v\n", arg)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.echo(msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.echo(msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.echo(msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.echo(msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	l.echo(msg, args)
	l.local.Fatal(msg)
}
