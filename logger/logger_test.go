package logger_test

import (
	"bytes"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/dentametrics/pmsync/logger"
)

var _ = Describe("Logger", func() {
	log := logger.NewLogger("test-service", "debug", false)

	It("Should have `test-service` as service name", func() {
		logOutput := bytes.NewBufferString("")
		log.SetOutput(logOutput)
		log.Info("Testing")
		Expect(logOutput.String()).To(ContainSubstring("service=test-service"))
	})

	It("Should log at info level", func() {
		logOutput := bytes.NewBufferString("")
		log.SetOutput(logOutput)
		log.Info("Testing")
		Expect(logOutput.String()).To(ContainSubstring("level=info"))
	})

	It("Should log at warning level", func() {
		logOutput := bytes.NewBufferString("")
		log.SetOutput(logOutput)
		log.Warn("Testing")
		Expect(logOutput.String()).To(ContainSubstring("level=warning"))
	})

	It("Should include a stack trace on Error when stack dumps are enabled", func() {
		stackLog := logger.NewLogger("test-service", "debug", true)
		logOutput := bytes.NewBufferString("")
		stackLog.SetOutput(logOutput)
		stackLog.Error("Testing")
		Expect(logOutput.String()).To(ContainSubstring("stackTrace"))
	})

	It("Should have `Testing` as msg", func() {
		logOutput := bytes.NewBufferString("")
		log.SetOutput(logOutput)
		log.Info("Testing")
		Expect(logOutput.String()).To(ContainSubstring("msg=Testing"))
	})
})
