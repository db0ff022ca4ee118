// Package schedule runs exports without a caller: recurring auto exports
// of new records per record type, single-record exports triggered by domain
// events and the periodic retention sweep.
//
// Cron holds the tasks themselves and can be invoked directly, for example
// from a CLI command. Scheduler invokes them on fixed intervals using
// robfig/cron.
//
// Basic usage:
//
//	tasks := schedule.NewCron(manager, records, []schedule.AutoExport{{
//	    RecordType:      export.RecordTypeOrders,
//	    IntervalMinutes: 60,
//	    Method:          job.MethodSFTP,
//	}})
//	s := schedule.NewScheduler(tasks, time.Hour)
//	if err := s.Start(ctx); err != nil {
//	    return err
//	}
//	defer s.Stop()
package schedule
