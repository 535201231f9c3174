package rcontext

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/t2bot/iadrive/common/config"
)

func Initial(c *config.Config) RequestContext {
	return RequestContext{
		Context: context.Background(),
		Log:     logrus.WithFields(logrus.Fields{"nocontext": true}),
		Config:  c,
	}.populate()
}

type RequestContext struct {
	context.Context

	// These are also stored on the context object itself
	Log    *logrus.Entry  // ia.logger
	Config *config.Config // ia.config
}

func (c RequestContext) populate() RequestContext {
	c.Context = context.WithValue(c.Context, "ia.logger", c.Log)
	c.Context = context.WithValue(c.Context, "ia.config", c.Config)
	return c
}

func (c RequestContext) ReplaceLogger(log *logrus.Entry) RequestContext {
	ctx := context.WithValue(c.Context, "ia.logger", log)
	return RequestContext{
		Context: ctx,
		Log:     log,
		Config:  c.Config,
	}
}

func (c RequestContext) LogWithFields(fields logrus.Fields) RequestContext {
	return c.ReplaceLogger(c.Log.WithFields(fields))
}
