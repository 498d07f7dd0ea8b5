// File: internal/browser/cdpdom/script.go
package cdpdom

import "fmt"

// observerScript returns a page script that reports subtree child-list
// mutations through the named runtime binding. It is safe to evaluate twice.
func observerScript(binding string) string {
	return fmt.Sprintf(`(() => {
  const binding = %q;
  if (window.__thumbwatchObserver) return;
  const notify = () => {
    try { window[binding](""); } catch (e) {}
  };
  const start = () => {
    const target = document.documentElement || document;
    const obs = new MutationObserver(notify);
    obs.observe(target, { childList: true, subtree: true });
    window.__thumbwatchObserver = obs;
  };
  if (document.documentElement) {
    start();
  } else {
    document.addEventListener("DOMContentLoaded", start, { once: true });
  }
})();`, binding)
}
