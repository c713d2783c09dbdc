package web

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>riskwatch</title>
<style>
  body { font-family: monospace; background: #111; color: #ddd; margin: 2em; }
  h1 { color: #7d56f4; }
  table { border-collapse: collapse; width: 100%; }
  td, th { border-bottom: 1px solid #333; padding: 4px 10px; text-align: left; }
  .pct { color: #f59f73; }
</style>
</head>
<body>
<h1>riskwatch</h1>
<p>sync cycles (live):</p>
<table id="cycles">
  <tr><th>time</th><th>instance</th><th>block</th><th>borrowers</th><th class="pct">riskiest %</th></tr>
</table>
<script>
const table = document.getElementById('cycles');
const source = new EventSource('/risk/stream');
source.addEventListener('cycle', (e) => {
  const s = JSON.parse(e.data);
  const row = table.insertRow(1);
  row.innerHTML = '<td>' + new Date(s.ts).toLocaleTimeString() + '</td>' +
    '<td>' + s.instance + '</td>' +
    '<td>' + s.block + '</td>' +
    '<td>' + s.borrowers + '</td>' +
    '<td class="pct">' + (s.riskiest_percent || '-') + '</td>';
  while (table.rows.length > 50) table.deleteRow(table.rows.length - 1);
});
</script>
</body>
</html>`
